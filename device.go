package zquirk

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/proxy"
	"sort"
)

var ErrUnknownCluster = errors.New("cluster not translated for device")
var ErrNoValue = errors.New("no value known for attribute")

type boundCluster struct {
	attributes *attribute.Map
	binding    *Binding
	proxy      *proxy.Proxy
	monitor    attribute.Monitor
}

// Device is a device with quirks attached, its clusters are translated through a proxy each.
type Device struct {
	device   da.Device
	endpoint zigbee.Endpoint
	quirks   []string
	cache    *Cache
	clusters map[zigbee.ClusterID]*boundCluster
	bound    []*boundCluster
}

// Entity is an attribute a host may expose, with the cluster it belongs to.
type Entity struct {
	ClusterID  zigbee.ClusterID
	Descriptor attribute.Descriptor
}

func (d *Device) Device() da.Device {
	return d.device
}

func (d *Device) Endpoint() zigbee.Endpoint {
	return d.endpoint
}

func (d *Device) Quirks() []string {
	return append([]string(nil), d.quirks...)
}

func (d *Device) Clusters() []zigbee.ClusterID {
	var ids []zigbee.ClusterID

	for _, bc := range d.bound {
		ids = append(ids, bc.attributes.ClusterID())
	}

	return ids
}

func (d *Device) Cache() *Cache {
	return d.cache
}

func (d *Device) cluster(c zigbee.ClusterID) (*boundCluster, error) {
	if bc, found := d.clusters[c]; found {
		return bc, nil
	}

	return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownCluster, c)
}

func (d *Device) Proxy(c zigbee.ClusterID) (*proxy.Proxy, error) {
	bc, err := d.cluster(c)
	if err != nil {
		return nil, err
	}

	return bc.proxy, nil
}

// WriteAttributes writes a batch of logical attributes to a cluster, vendor codes are filled in by the binding.
func (d *Device) WriteAttributes(ctx context.Context, c zigbee.ClusterID, batch proxy.Batch) ([]global.WriteAttributesResponseRecord, error) {
	bc, err := d.cluster(c)
	if err != nil {
		return nil, err
	}

	return bc.proxy.WriteAttributes(ctx, batch, zigbee.NoManufacturer)
}

// ReadAttributes requests the current values of logical attributes from the device, aliases are read through
// the attribute they derive from. Values arrive in the cache.
func (d *Device) ReadAttributes(ctx context.Context, c zigbee.ClusterID, names ...string) error {
	bc, err := d.cluster(c)
	if err != nil {
		return err
	}

	ids := map[zcl.AttributeID]bool{}

	for _, name := range names {
		desc, err := bc.attributes.Resolve(name)
		if err != nil {
			return err
		}

		if desc.Kind == attribute.Alias {
			desc, err = bc.attributes.Resolve(desc.Underlying)
			if err != nil {
				return err
			}
		}

		ids[desc.ID] = true
	}

	if len(ids) == 0 {
		return nil
	}

	var toRead []zcl.AttributeID
	for id := range ids {
		toRead = append(toRead, id)
	}
	sort.Slice(toRead, func(i, j int) bool { return toRead[i] < toRead[j] })

	return bc.binding.ReadAttributes(ctx, zigbee.NoManufacturer, toRead)
}

// Value returns the last known logical value of an attribute, enumerations are returned as their wire.Value.
func (d *Device) Value(c zigbee.ClusterID, name string) (any, error) {
	bc, err := d.cluster(c)
	if err != nil {
		return nil, err
	}

	desc, err := bc.attributes.Resolve(name)
	if err != nil {
		return nil, err
	}

	v, found := d.cache.Value(c, desc.ID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoValue, name)
	}

	return bc.proxy.Decode(name, v)
}

// Entities lists the attributes that carry entity metadata, in cluster order.
func (d *Device) Entities() []Entity {
	var entities []Entity

	for _, bc := range d.bound {
		for _, desc := range bc.attributes.Descriptors() {
			if desc.Entity != nil {
				entities = append(entities, Entity{ClusterID: bc.attributes.ClusterID(), Descriptor: desc})
			}
		}
	}

	return entities
}
