package zquirk

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/converter"
	"github.com/shimmeringbee/zigbee"
	"sort"
	"strconv"
	"time"
)

const EndpointKey = "Endpoint"
const QuirksKey = "Quirks"
const BindingKey = "Binding"
const TimeoutKey = "Timeout"
const AttemptsKey = "Attempts"
const MaxInFlightKey = "MaxInFlight"
const PollIntervalKey = "PollInterval"
const ClusterKey = "Cluster"
const MonitorKey = "Monitor"
const CacheKey = "Cache"

func (r *Registry) sectionForDevice(d da.Device) persistence.Section {
	return r.section.Section("device", d.Identifier().String())
}

func (r *Registry) sectionExistsForDevice(d da.Device) bool {
	return r.section.Section("device").SectionExists(d.Identifier().String())
}

func (r *Registry) sectionRemoveDevice(d da.Device) bool {
	return r.section.Section("device").SectionDelete(d.Identifier().String())
}

func sectionForMonitor(s persistence.Section, c zigbee.ClusterID) persistence.Section {
	return s.Section(ClusterKey, strconv.FormatUint(uint64(c), 16), MonitorKey)
}

type deviceState struct {
	endpoint     zigbee.Endpoint
	quirks       []string
	config       BindingConfig
	pollInterval time.Duration
}

func storeDeviceState(s persistence.Section, st deviceState) {
	s.Set(EndpointKey, int(st.endpoint))

	s.SectionDelete(QuirksKey)
	for _, q := range st.quirks {
		s.Section(QuirksKey, q)
	}

	b := s.Section(BindingKey)
	converter.Store(b, TimeoutKey, st.config.Timeout, converter.DurationEncoder)
	b.Set(AttemptsKey, st.config.Attempts)
	b.Set(MaxInFlightKey, int(st.config.MaxInFlight))

	if st.pollInterval > 0 {
		converter.Store(b, PollIntervalKey, st.pollInterval, converter.DurationEncoder)
	} else {
		b.Delete(PollIntervalKey)
	}
}

func loadDeviceState(s persistence.Section) (deviceState, bool) {
	ep, found := s.Int(EndpointKey)
	if !found {
		return deviceState{}, false
	}

	st := deviceState{endpoint: zigbee.Endpoint(ep)}

	st.quirks = s.Section(QuirksKey).SectionKeys()
	sort.Strings(st.quirks)

	b := s.Section(BindingKey)
	st.config.Timeout, _ = converter.Retrieve(b, TimeoutKey, converter.DurationDecoder, DefaultNetworkTimeout)

	if v, ok := b.Int(AttemptsKey); ok {
		st.config.Attempts = int(v)
	}

	if v, ok := b.Int(MaxInFlightKey); ok {
		st.config.MaxInFlight = int64(v)
	}

	st.pollInterval, _ = converter.Retrieve(b, PollIntervalKey, converter.DurationDecoder, time.Duration(0))

	return st, true
}
