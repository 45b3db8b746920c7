// Package legrand declares the manufacturer specific clusters of Legrand cable outlets and pilot wire modules.
package legrand

import (
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/wire"
)

const Manufacturer = zigbee.ManufacturerCode(0x1021)

// Basic product data as reported by the devices, both carry a leading space.
const ManufacturerName = " Legrand"
const CableOutletModel = " Cable outlet"
const PilotWireModel = " Pilot wire module"

const ClusterID = zigbee.ClusterID(0xfc01)
const WirePilotClusterID = zigbee.ClusterID(0xfc40)

const (
	DeviceModeID     = zcl.AttributeID(0x0000)
	LedDarkID        = zcl.AttributeID(0x0001)
	LedOnID          = zcl.AttributeID(0x0002)
	DeviceModeEnumID = zcl.AttributeID(0x4000)

	HeatModeID = zcl.AttributeID(0x0000)

	SetHeatModeCommandID = zcl.CommandIdentifier(0x00)
)

// Raw device_mode words in the order they appear on the wire.
var (
	DeviceModeWirePilotOn  = []byte{0x02, 0x00}
	DeviceModeWirePilotOff = []byte{0x01, 0x00}
)

var DeviceMode = wire.MustEnumeration("DeviceMode",
	wire.Value{Name: "On_off", Code: 0x00, Aliases: []string{"Switch"}},
	wire.Value{Name: "Wire_pilot", Code: 0x01},
)

var HeatMode = wire.MustEnumeration("HeatMode",
	wire.Value{Name: "Comfort", Code: 0x00},
	wire.Value{Name: "Comfort_minus_1", Code: 0x01},
	wire.Value{Name: "Comfort_minus_2", Code: 0x02},
	wire.Value{Name: "Eco", Code: 0x03},
	wire.Value{Name: "Frost_protection", Code: 0x04},
	wire.Value{Name: "Off", Code: 0x05},
)

// DeviceModeCodec maps the raw device mode word, anything other than the wire pilot word reads as On_off.
var DeviceModeCodec = wire.MustCodec(DeviceMode, 0x00,
	wire.Mapping{Code: 0x00, Raw: DeviceModeWirePilotOff},
	wire.Mapping{Code: 0x01, Raw: DeviceModeWirePilotOn},
)

func baseAttributes() []attribute.Descriptor {
	return []attribute.Descriptor{
		{Name: "device_mode", ID: DeviceModeID, DataType: zcl.TypeData16, ManufacturerSpecific: true},
		{Name: "led_dark", ID: LedDarkID, DataType: zcl.TypeBoolean, ManufacturerSpecific: true},
		{Name: "led_on", ID: LedOnID, DataType: zcl.TypeBoolean, ManufacturerSpecific: true},
	}
}

// Cluster is the general Legrand cluster with the device_mode_enum alias over device_mode.
func Cluster() *attribute.Map {
	attributes := append(baseAttributes(), attribute.Descriptor{
		Name:                 "device_mode_enum",
		ID:                   DeviceModeEnumID,
		DataType:             zcl.TypeEnum8,
		ManufacturerSpecific: true,
		Kind:                 attribute.Alias,
		Underlying:           "device_mode",
		Codec:                DeviceModeCodec,
		Entity:               &attribute.Entity{TranslationKey: "device_mode", FallbackName: "Device mode", Type: attribute.ConfigEntity},
	})

	return attribute.MustMap(attribute.Cluster{
		ID:           ClusterID,
		Name:         "Legrand",
		Manufacturer: Manufacturer,
		Attributes:   attributes,
	})
}

// PlainCluster is the general Legrand cluster as declared for cable outlets without device mode translation.
func PlainCluster() *attribute.Map {
	return attribute.MustMap(attribute.Cluster{
		ID:           ClusterID,
		Name:         "LegrandCluster",
		Manufacturer: Manufacturer,
		Attributes:   baseAttributes(),
	})
}

func heatModeCluster(name string, attr string, command string, readBack bool, entity *attribute.Entity) *attribute.Map {
	return attribute.MustMap(attribute.Cluster{
		ID:           WirePilotClusterID,
		Name:         name,
		Manufacturer: Manufacturer,
		Attributes: []attribute.Descriptor{
			{
				Name:                 attr,
				ID:                   HeatModeID,
				DataType:             zcl.TypeEnum8,
				ManufacturerSpecific: true,
				Enumeration:          HeatMode,
				Kind:                 attribute.CommandBacked,
				Command:              command,
				ReadBack:             readBack,
				Entity:               entity,
			},
		},
		Commands: []attribute.Command{
			{Name: command, ID: SetHeatModeCommandID, Direction: zcl.ClientToServer, ManufacturerSpecific: true, Argument: HeatMode},
		},
	})
}

// WirePilotCluster carries heat_mode through set_heat_mode, reading the mode back after each change.
func WirePilotCluster() *attribute.Map {
	return heatModeCluster("Legrand Wire Pilot", "heat_mode", "set_heat_mode", true,
		&attribute.Entity{TranslationKey: "heat_mode", FallbackName: "Heat mode", Type: attribute.StandardEntity})
}

// CableOutletCluster carries heat_mode through set_heat_mode without read back.
func CableOutletCluster() *attribute.Map {
	return heatModeCluster("CableOutlet", "heat_mode", "set_heat_mode", false, nil)
}

// PilotWireCluster is the pilot wire module naming of the same contract.
func PilotWireCluster() *attribute.Map {
	return heatModeCluster("Legrand Pilot Wire", "pilot_wire_mode", "set_pilot_wire_mode", true,
		&attribute.Entity{TranslationKey: "pilot_wire_mode", FallbackName: "Pilot wire mode", Type: attribute.StandardEntity})
}
