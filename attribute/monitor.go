package attribute

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/converter"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"sort"
	"strconv"
	"time"
)

type PollingMode int

const (
	NeverPoll PollingMode = iota
	AlwaysPoll
)

type PollingConfig struct {
	Mode       PollingMode
	Interval   time.Duration
	Attributes []zcl.AttributeID
}

// MonitorCallback receives every attribute record reported or read from the monitored cluster.
type MonitorCallback func(zcl.AttributeID, zcl.AttributeDataTypeValue)

type Monitor interface {
	Init(s persistence.Section, d da.Device, cb MonitorCallback)
	Load(ctx context.Context) error
	Attach(ctx context.Context, e zigbee.Endpoint, c zigbee.ClusterID, m zigbee.ManufacturerCode, pc PollingConfig) error
	Detach(ctx context.Context) error
}

const PollingConfiguredKey = "PollingConfigured"
const PollingIntervalKey = "PollingInterval"
const PollingAttributesKey = "PollingAttributes"

const RemoteEndpointKey = "RemoteEndpoint"
const ClusterIdKey = "ClusterID"
const ManufacturerKey = "Manufacturer"

const DefaultPollingInterval = 5 * time.Minute
const pollTimeout = 5 * time.Second

type TransmissionLookup func(da.Device, zigbee.ProfileID) (zigbee.IEEEAddress, zigbee.Endpoint, bool, uint8)

func NewMonitor(c communicator.Communicator, tl TransmissionLookup, l logwrap.Logger) Monitor {
	return &zclMonitor{
		zclCommunicator:    c,
		transmissionLookup: tl,
		logger:             &l,
	}
}

type zclMonitor struct {
	zclCommunicator    communicator.Communicator
	transmissionLookup TransmissionLookup
	logger             *logwrap.Logger

	config   persistence.Section
	device   da.Device
	callback MonitorCallback
	match    communicator.Match
	attached bool

	ieeeAddress    zigbee.IEEEAddress
	remoteEndpoint zigbee.Endpoint
	localEndpoint  zigbee.Endpoint
	clusterID      zigbee.ClusterID
	manufacturer   zigbee.ManufacturerCode
	pollAttributes []zcl.AttributeID

	ticker     *time.Ticker
	pollerStop chan struct{}
}

func (z *zclMonitor) Init(s persistence.Section, d da.Device, cb MonitorCallback) {
	z.config = s
	z.device = d
	z.callback = cb

	z.logger.AddOptionsToLogger(logwrap.Datum("Identifier", d.Identifier().String()))
}

func (z *zclMonitor) Load(pctx context.Context) error {
	ctx, end := z.logger.Segment(pctx, "Loading cluster report monitor.")
	defer end()

	z.ieeeAddress, z.localEndpoint, _, _ = z.transmissionLookup(z.device, zigbee.ProfileHomeAutomation)

	if v, ok := z.config.Int(RemoteEndpointKey); ok {
		z.remoteEndpoint = zigbee.Endpoint(v)
	} else {
		z.logger.Error(ctx, "Required config parameter missing.", logwrap.Datum("name", RemoteEndpointKey))
		return fmt.Errorf("monitor missing config parameter: %s", RemoteEndpointKey)
	}

	if v, ok := z.config.Int(ClusterIdKey); ok {
		z.clusterID = zigbee.ClusterID(v)
	} else {
		z.logger.Error(ctx, "Required config parameter missing.", logwrap.Datum("name", ClusterIdKey))
		return fmt.Errorf("monitor missing config parameter: %s", ClusterIdKey)
	}

	if v, ok := z.config.Int(ManufacturerKey); ok {
		z.manufacturer = zigbee.ManufacturerCode(v)
	} else {
		z.manufacturer = zigbee.NoManufacturer
	}

	z.pollAttributes = nil
	for _, k := range z.config.Section(PollingAttributesKey).SectionKeys() {
		if v, err := strconv.ParseUint(k, 16, 16); err == nil {
			z.pollAttributes = append(z.pollAttributes, zcl.AttributeID(v))
		}
	}
	sort.Slice(z.pollAttributes, func(i, j int) bool { return z.pollAttributes[i] < z.pollAttributes[j] })

	return z.reattach(ctx)
}

func (z *zclMonitor) reattach(ctx context.Context) error {
	z.match = communicator.NewMatch(z.zclFilter, z.zclMessage)
	z.zclCommunicator.RegisterMatch(z.match)
	z.attached = true

	z.logger.Info(ctx, "Cluster report monitor configuration.", logwrap.Data(logwrap.List{"LocalEndpoint": z.localEndpoint, "RemoteEndpoint": z.remoteEndpoint, "ClusterId": z.clusterID, "Manufacturer": z.manufacturer}))

	if v, ok := z.config.Bool(PollingConfiguredKey); ok && v && len(z.pollAttributes) > 0 {
		interval, _ := converter.Retrieve(z.config, PollingIntervalKey, converter.DurationDecoder, DefaultPollingInterval)

		z.logger.Info(ctx, "Polling configured, starting...", logwrap.Datum("intervalMs", interval.Milliseconds()))

		z.ticker = time.NewTicker(interval)
		z.pollerStop = make(chan struct{}, 1)
		go z.poller(context.Background(), z.ticker, z.pollerStop)
	}

	return nil
}

func (z *zclMonitor) Attach(ctx context.Context, e zigbee.Endpoint, c zigbee.ClusterID, m zigbee.ManufacturerCode, pc PollingConfig) error {
	z.logger.Info(ctx, "Attaching cluster report monitor...", logwrap.Datum("ClusterID", c), logwrap.Datum("PollingMode", pc.Mode))

	z.ieeeAddress, z.localEndpoint, _, _ = z.transmissionLookup(z.device, zigbee.ProfileHomeAutomation)

	z.remoteEndpoint = e
	z.clusterID = c
	z.manufacturer = m
	z.pollAttributes = append([]zcl.AttributeID(nil), pc.Attributes...)

	z.config.Set(RemoteEndpointKey, int(z.remoteEndpoint))
	z.config.Set(ClusterIdKey, int(z.clusterID))
	z.config.Set(ManufacturerKey, int(z.manufacturer))

	z.config.SectionDelete(PollingAttributesKey)
	for _, a := range z.pollAttributes {
		z.config.Section(PollingAttributesKey, strconv.FormatUint(uint64(a), 16))
	}

	if pc.Mode == AlwaysPoll {
		interval := pc.Interval
		if interval <= 0 {
			interval = DefaultPollingInterval
		}

		z.config.Set(PollingConfiguredKey, true)
		converter.Store(z.config, PollingIntervalKey, interval, converter.DurationEncoder)
	} else {
		z.config.Delete(PollingConfiguredKey)
	}

	return z.reattach(ctx)
}

func (z *zclMonitor) Detach(ctx context.Context) error {
	z.logger.Info(ctx, "Detaching cluster report monitor...")

	if z.attached {
		z.zclCommunicator.UnregisterMatch(z.match)
		z.attached = false
	}

	if z.ticker != nil {
		z.pollerStop <- struct{}{}
		z.ticker = nil
	}

	return nil
}

func (z *zclMonitor) poller(pctx context.Context, ticker *time.Ticker, stop chan struct{}) {
	defer close(stop)

	for {
		select {
		case <-stop:
			ticker.Stop()
			return
		case <-ticker.C:
			_, _, ack, seq := z.transmissionLookup(z.device, zigbee.ProfileHomeAutomation)

			ctx, done := context.WithTimeout(pctx, pollTimeout)
			if _, err := z.zclCommunicator.ReadAttributes(ctx, z.ieeeAddress, ack, z.clusterID, z.manufacturer, z.localEndpoint, z.remoteEndpoint, seq, z.pollAttributes); err != nil {
				z.logger.Error(ctx, "Failed to poll cluster attributes.", logwrap.Err(err), logwrap.Datum("ClusterID", z.clusterID))
			}
			done()
		}
	}
}

func (z *zclMonitor) zclFilter(a zigbee.IEEEAddress, _ zigbee.ApplicationMessage, m zcl.Message) bool {
	return a == z.ieeeAddress &&
		m.ClusterID == z.clusterID &&
		m.SourceEndpoint == z.remoteEndpoint &&
		m.DestinationEndpoint == z.localEndpoint
}

func (z *zclMonitor) zclMessage(m communicator.MessageWithSource) {
	switch cmd := m.Message.Command.(type) {
	case *global.ReportAttributes:
		for _, record := range cmd.Records {
			if record.DataTypeValue != nil {
				z.callback(record.Identifier, *record.DataTypeValue)
			}
		}
	case *global.ReadAttributesResponse:
		for _, record := range cmd.Records {
			if record.Status == 0 && record.DataTypeValue != nil {
				z.callback(record.Identifier, *record.DataTypeValue)
			}
		}
	}
}
