package zquirk

import (
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
)

// CommandLibrary returns a function that registers the vendor commands of a cluster into a ZCL command registry,
// so they can be marshalled onto and unmarshalled from the wire.
func CommandLibrary(m *attribute.Map) func(*zcl.CommandRegistry) {
	return func(cr *zcl.CommandRegistry) {
		for _, cmd := range m.Commands() {
			manufacturer := zigbee.NoManufacturer
			if cmd.ManufacturerSpecific {
				manufacturer = m.Manufacturer()
			}

			cr.RegisterLocal(m.ClusterID(), manufacturer, cmd.Direction, cmd.ID, &attribute.EnumArgument{})
		}
	}
}
