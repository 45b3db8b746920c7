package zquirk

import (
	"context"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/retry"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/proxy"
	"golang.org/x/sync/semaphore"
	"time"
)

const DefaultNetworkTimeout = 3 * time.Second
const DefaultNetworkAttempts = 1
const DefaultMaxInFlight = 1

// BindingConfig controls how a binding uses the network. Attempts is the total number of tries for each wire
// operation, each with its own Timeout.
type BindingConfig struct {
	Timeout     time.Duration
	Attempts    int
	MaxInFlight int64
}

func (c BindingConfig) withDefaults() BindingConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultNetworkTimeout
	}

	if c.Attempts <= 0 {
		c.Attempts = DefaultNetworkAttempts
	}

	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}

	return c
}

// Binding provides the write, read and command primitives for one cluster on one endpoint of a device.
type Binding struct {
	communicator       communicator.Communicator
	transmissionLookup attribute.TransmissionLookup
	device             da.Device
	endpoint           zigbee.Endpoint
	attributes         *attribute.Map
	config             BindingConfig
	sem                *semaphore.Weighted
	logger             logwrap.Logger
}

var _ proxy.Primitives = (*Binding)(nil)

func NewBinding(c communicator.Communicator, tl attribute.TransmissionLookup, d da.Device, e zigbee.Endpoint, m *attribute.Map, cfg BindingConfig, l logwrap.Logger) *Binding {
	cfg = cfg.withDefaults()

	return &Binding{
		communicator:       c,
		transmissionLookup: tl,
		device:             d,
		endpoint:           e,
		attributes:         m,
		config:             cfg,
		sem:                semaphore.NewWeighted(cfg.MaxInFlight),
		logger:             l,
	}
}

func (b *Binding) Endpoint() zigbee.Endpoint {
	return b.endpoint
}

// manufacturer substitutes the cluster's vendor code when the caller has none and the cluster is outside the
// standard namespace.
func (b *Binding) manufacturer(m zigbee.ManufacturerCode) zigbee.ManufacturerCode {
	if m == zigbee.NoManufacturer && b.attributes.ManufacturerSpecific() {
		return b.attributes.Manufacturer()
	}

	return m
}

func (b *Binding) do(ctx context.Context, f func(context.Context) error) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	return retry.Retry(ctx, b.config.Timeout, b.config.Attempts, f)
}

func (b *Binding) WriteAttributes(pctx context.Context, m zigbee.ManufacturerCode, attributes map[zcl.AttributeID]zcl.AttributeDataTypeValue) ([]global.WriteAttributesResponseRecord, error) {
	ctx, end := b.logger.Segment(pctx, "Writing attributes to device.", logwrap.Datum("ClusterID", b.attributes.ClusterID()), logwrap.Datum("Count", len(attributes)))
	defer end()

	manufacturer := b.manufacturer(m)

	var records []global.WriteAttributesResponseRecord

	err := b.do(ctx, func(ctx context.Context) error {
		ieee, local, ack, seq := b.transmissionLookup(b.device, zigbee.ProfileHomeAutomation)

		r, err := b.communicator.WriteAttributes(ctx, ieee, ack, b.attributes.ClusterID(), manufacturer, local, b.endpoint, seq, attributes)
		if err == nil {
			records = r
		}

		return err
	})

	if err != nil {
		b.logger.Error(ctx, "Failed to write attributes.", logwrap.Err(err))
	}

	return records, err
}

// ReadAttributes requests attributes from the device. The response reaches the cluster's monitor like any other
// frame from the device, so returned values are not passed on from here.
func (b *Binding) ReadAttributes(pctx context.Context, m zigbee.ManufacturerCode, attributes []zcl.AttributeID) error {
	ctx, end := b.logger.Segment(pctx, "Reading attributes from device.", logwrap.Datum("ClusterID", b.attributes.ClusterID()), logwrap.Datum("Count", len(attributes)))
	defer end()

	manufacturer := b.manufacturer(m)

	var records []global.ReadAttributeResponseRecord

	err := b.do(ctx, func(ctx context.Context) error {
		ieee, local, ack, seq := b.transmissionLookup(b.device, zigbee.ProfileHomeAutomation)

		r, err := b.communicator.ReadAttributes(ctx, ieee, ack, b.attributes.ClusterID(), manufacturer, local, b.endpoint, seq, attributes)
		if err == nil {
			records = r
		}

		return err
	})

	if err != nil {
		b.logger.Error(ctx, "Failed to read attributes.", logwrap.Err(err))
		return err
	}

	for _, record := range records {
		if record.Status != 0 || record.DataTypeValue == nil {
			b.logger.Debug(ctx, "Device did not return attribute.", logwrap.Datum("AttributeID", record.Identifier), logwrap.Datum("Status", record.Status))
		}
	}

	return nil
}

func (b *Binding) IssueCommand(pctx context.Context, m zigbee.ManufacturerCode, command attribute.Command, argument any) error {
	ctx, end := b.logger.Segment(pctx, "Issuing command to device.", logwrap.Datum("ClusterID", b.attributes.ClusterID()), logwrap.Datum("Command", command.Name))
	defer end()

	manufacturer := b.manufacturer(m)

	err := b.do(ctx, func(ctx context.Context) error {
		ieee, local, ack, seq := b.transmissionLookup(b.device, zigbee.ProfileHomeAutomation)

		return b.communicator.Request(ctx, ieee, ack, zcl.Message{
			FrameType:           zcl.FrameLocal,
			Direction:           command.Direction,
			TransactionSequence: seq,
			Manufacturer:        manufacturer,
			ClusterID:           b.attributes.ClusterID(),
			SourceEndpoint:      local,
			DestinationEndpoint: b.endpoint,
			CommandIdentifier:   command.ID,
			Command:             argument,
		})
	})

	if err != nil {
		b.logger.Error(ctx, "Failed to issue command.", logwrap.Err(err))
	}

	return err
}
