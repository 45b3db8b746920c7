package zquirk

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/communicator"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/proxy"
	"github.com/shimmeringbee/zquirk/rules"
	"sort"
	"sync"
)

var ErrNoQuirk = errors.New("no quirk matches device")
var ErrUnknownQuirk = errors.New("unknown quirk")
var ErrNotAttached = errors.New("device has no quirk attached")

// Rule settings understood when attaching a device.
const (
	SettingTimeout      = "timeout_ms"
	SettingAttempts     = "attempts"
	SettingMaxInFlight  = "max_in_flight"
	SettingPollInterval = "poll_interval_ms"
)

// Registry holds the known quirks, selects them for devices and keeps the translations of attached devices.
type Registry struct {
	communicator       communicator.Communicator
	commandRegistry    *zcl.CommandRegistry
	transmissionLookup attribute.TransmissionLookup
	section            persistence.Section
	engine             *rules.Engine
	config             BindingConfig
	callbacks          callbacks.AdderCaller
	logger             logwrap.Logger
	newMonitor         func() attribute.Monitor

	m       *sync.RWMutex
	quirks  map[string]Quirk
	devices map[string]*Device
}

func New(c communicator.Communicator, cr *zcl.CommandRegistry, tl attribute.TransmissionLookup, s persistence.Section) *Registry {
	r := &Registry{
		communicator:       c,
		commandRegistry:    cr,
		transmissionLookup: tl,
		section:            s,
		callbacks:          callbacks.Create(),
		logger:             logwrap.New(discard.Discard()),
		m:                  &sync.RWMutex{},
		quirks:             map[string]Quirk{},
		devices:            map[string]*Device{},
	}

	r.newMonitor = func() attribute.Monitor {
		return attribute.NewMonitor(r.communicator, r.transmissionLookup, r.logger)
	}

	if e, err := rules.Default(); err == nil {
		r.engine = e
	}

	return r
}

func (r *Registry) WithBindingConfig(cfg BindingConfig) {
	r.config = cfg
}

// WithRules replaces the rule engine used to select quirks, the engine must already be compiled.
func (r *Registry) WithRules(e *rules.Engine) {
	r.engine = e
}

// Listen registers a function to be called with every AttributeUpdate of every attached device.
func (r *Registry) Listen(f func(context.Context, AttributeUpdate) error) {
	r.callbacks.Add(f)
}

// Register adds a quirk and registers the commands of its clusters with the ZCL command registry.
func (r *Registry) Register(q Quirk) error {
	if err := q.validate(); err != nil {
		return err
	}

	r.m.Lock()
	defer r.m.Unlock()

	if _, found := r.quirks[q.Name]; found {
		return fmt.Errorf("%w: %s already registered", ErrInvalidQuirk, q.Name)
	}

	r.quirks[q.Name] = q

	if r.commandRegistry != nil {
		for _, m := range q.Clusters {
			CommandLibrary(m)(r.commandRegistry)
		}
	}

	return nil
}

func (r *Registry) Quirk(name string) (Quirk, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	q, found := r.quirks[name]
	return q, found
}

func (r *Registry) Quirks() []string {
	r.m.RLock()
	defer r.m.RUnlock()

	var names []string
	for k := range r.quirks {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

// Match runs the rules against the device data and returns the quirks selected, along with the settings the
// matching rules carried.
func (r *Registry) Match(in rules.Input) ([]Quirk, rules.Settings, error) {
	if r.engine == nil {
		return nil, nil, ErrNoQuirk
	}

	out, err := r.engine.Execute(in)
	if err != nil {
		return nil, nil, err
	}

	if len(out.Quirks) == 0 {
		return nil, nil, ErrNoQuirk
	}

	quirks, err := r.lookupQuirks(out.Quirks)
	if err != nil {
		return nil, nil, err
	}

	return quirks, out.Settings, nil
}

func (r *Registry) lookupQuirks(names []string) ([]Quirk, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	var quirks []Quirk

	for _, name := range names {
		q, found := r.quirks[name]
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuirk, name)
		}

		quirks = append(quirks, q)
	}

	return quirks, nil
}

// Attach selects quirks for the device and starts translating the clusters they declare on the endpoint given in
// the input. Any existing attachment is replaced.
func (r *Registry) Attach(pctx context.Context, d da.Device, in rules.Input) (*Device, error) {
	ctx, end := r.logger.Segment(pctx, "Attaching quirks to device.", logwrap.Datum("Identifier", d.Identifier().String()), logwrap.Datum("Manufacturer", in.Product.Manufacturer), logwrap.Datum("Product", in.Product.Name))
	defer end()

	quirks, settings, err := r.Match(in)
	if err != nil {
		r.logger.Info(ctx, "No quirk applies to device.", logwrap.Err(err))
		return nil, err
	}

	st := deviceState{endpoint: zigbee.Endpoint(in.Endpoint.ID), config: r.config.withDefaults()}

	for _, q := range quirks {
		st.quirks = append(st.quirks, q.Name)

		if q.PollInterval > 0 && (st.pollInterval == 0 || q.PollInterval < st.pollInterval) {
			st.pollInterval = q.PollInterval
		}
	}

	if v, ok := settings.Duration(SettingTimeout); ok {
		st.config.Timeout = v
	}

	if v, ok := settings.Int(SettingAttempts); ok {
		st.config.Attempts = v
	}

	if v, ok := settings.Int(SettingMaxInFlight); ok {
		st.config.MaxInFlight = int64(v)
	}

	if v, ok := settings.Duration(SettingPollInterval); ok {
		st.pollInterval = v
	}

	if err := r.Detach(ctx, d); err != nil && !errors.Is(err, ErrNotAttached) {
		return nil, err
	}

	s := r.sectionForDevice(d)

	dev, err := r.build(d, s, st, quirks)
	if err != nil {
		r.sectionRemoveDevice(d)
		return nil, err
	}

	storeDeviceState(s, st)

	for i, bc := range dev.bound {
		pc := attribute.PollingConfig{Mode: attribute.NeverPoll}
		if st.pollInterval > 0 {
			pc = attribute.PollingConfig{Mode: attribute.AlwaysPoll, Interval: st.pollInterval, Attributes: bc.attributes.DeviceAttributes()}
		}

		if err := bc.monitor.Attach(ctx, st.endpoint, bc.attributes.ClusterID(), monitorManufacturer(bc.attributes), pc); err != nil {
			r.logger.Error(ctx, "Failed to attach cluster monitor.", logwrap.Err(err), logwrap.Datum("ClusterID", bc.attributes.ClusterID()))

			for _, prev := range dev.bound[:i] {
				_ = prev.monitor.Detach(ctx)
			}

			r.sectionRemoveDevice(d)
			return nil, err
		}
	}

	r.m.Lock()
	r.devices[d.Identifier().String()] = dev
	r.m.Unlock()

	r.logger.Info(ctx, "Quirks attached to device.", logwrap.Datum("Quirks", st.quirks), logwrap.Datum("Endpoint", st.endpoint))

	return dev, nil
}

// Load restores the attachment of a device from persistence.
func (r *Registry) Load(pctx context.Context, d da.Device) (*Device, error) {
	ctx, end := r.logger.Segment(pctx, "Loading device quirks.", logwrap.Datum("Identifier", d.Identifier().String()))
	defer end()

	if !r.sectionExistsForDevice(d) {
		return nil, ErrNotAttached
	}

	s := r.sectionForDevice(d)

	st, found := loadDeviceState(s)
	if !found {
		return nil, ErrNotAttached
	}

	quirks, err := r.lookupQuirks(st.quirks)
	if err != nil {
		r.logger.Error(ctx, "Persisted quirk no longer registered.", logwrap.Err(err))
		return nil, err
	}

	dev, err := r.build(d, s, st, quirks)
	if err != nil {
		return nil, err
	}

	for i, bc := range dev.bound {
		if err := bc.monitor.Load(ctx); err != nil {
			r.logger.Error(ctx, "Failed to load cluster monitor.", logwrap.Err(err), logwrap.Datum("ClusterID", bc.attributes.ClusterID()))

			for _, prev := range dev.bound[:i] {
				_ = prev.monitor.Detach(ctx)
			}

			return nil, err
		}
	}

	r.m.Lock()
	r.devices[d.Identifier().String()] = dev
	r.m.Unlock()

	return dev, nil
}

// Detach stops translating a device and forgets everything persisted about it.
func (r *Registry) Detach(ctx context.Context, d da.Device) error {
	key := d.Identifier().String()

	r.m.Lock()
	dev, found := r.devices[key]
	delete(r.devices, key)
	r.m.Unlock()

	existed := r.sectionRemoveDevice(d)

	if !found {
		if existed {
			return nil
		}
		return ErrNotAttached
	}

	r.logger.Info(ctx, "Detaching quirks from device.", logwrap.Datum("Identifier", key))

	var errs []error
	for _, bc := range dev.bound {
		if err := bc.monitor.Detach(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) Device(d da.Device) (*Device, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	dev, found := r.devices[d.Identifier().String()]
	return dev, found
}

func (r *Registry) build(d da.Device, s persistence.Section, st deviceState, quirks []Quirk) (*Device, error) {
	dev := &Device{
		device:   d,
		endpoint: st.endpoint,
		cache:    NewCache(s.Section(CacheKey), d, r.callbacks, r.logger),
		clusters: map[zigbee.ClusterID]*boundCluster{},
	}

	for _, q := range quirks {
		dev.quirks = append(dev.quirks, q.Name)

		for _, m := range q.Clusters {
			if _, found := dev.clusters[m.ClusterID()]; found {
				return nil, fmt.Errorf("%w: cluster 0x%04x declared by more than one quirk", ErrInvalidQuirk, m.ClusterID())
			}

			binding := NewBinding(r.communicator, r.transmissionLookup, d, st.endpoint, m, st.config, r.logger)
			p := proxy.New(m, binding, dev.cache, r.logger)

			monitor := r.newMonitor()
			monitor.Init(sectionForMonitor(s, m.ClusterID()), d, func(id zcl.AttributeID, v zcl.AttributeDataTypeValue) {
				p.OnAttributeReport(context.Background(), id, v)
			})

			bc := &boundCluster{attributes: m, binding: binding, proxy: p, monitor: monitor}
			dev.clusters[m.ClusterID()] = bc
			dev.bound = append(dev.bound, bc)
		}
	}

	sort.Slice(dev.bound, func(i, j int) bool {
		return dev.bound[i].attributes.ClusterID() < dev.bound[j].attributes.ClusterID()
	})

	return dev, nil
}

func monitorManufacturer(m *attribute.Map) zigbee.ManufacturerCode {
	if m.ManufacturerSpecific() {
		return m.Manufacturer()
	}

	return zigbee.NoManufacturer
}
