package zquirk

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/shimmeringbee/zquirk/wire"
)

const testManufacturer = zigbee.ManufacturerCode(0x1021)
const testClusterID = zigbee.ClusterID(0xfc01)
const testCommandClusterID = zigbee.ClusterID(0xfc40)

var testMode = wire.MustEnumeration("Mode",
	wire.Value{Name: "Off", Code: 0x00, Aliases: []string{"Switch"}},
	wire.Value{Name: "On", Code: 0x01},
)

var testLevel = wire.MustEnumeration("Level",
	wire.Value{Name: "Low", Code: 0x00},
	wire.Value{Name: "Medium", Code: 0x01},
	wire.Value{Name: "High", Code: 0x02},
)

func testAliasMap() *attribute.Map {
	return attribute.MustMap(attribute.Cluster{
		ID:           testClusterID,
		Name:         "Vendor",
		Manufacturer: testManufacturer,
		Attributes: []attribute.Descriptor{
			{Name: "mode", ID: 0x0000, DataType: zcl.TypeData16, ManufacturerSpecific: true},
			{Name: "indicator", ID: 0x0001, DataType: zcl.TypeBoolean, ManufacturerSpecific: true},
			{Name: "mode_enum", ID: 0x4000, DataType: zcl.TypeEnum8, ManufacturerSpecific: true, Kind: attribute.Alias, Underlying: "mode",
				Codec:  wire.MustCodec(testMode, 0x00, wire.Mapping{Code: 0x00, Raw: []byte{0x01, 0x00}}, wire.Mapping{Code: 0x01, Raw: []byte{0x02, 0x00}}),
				Entity: &attribute.Entity{TranslationKey: "mode", FallbackName: "Mode", Type: attribute.ConfigEntity}},
		},
	})
}

var testSetLevel = attribute.Command{Name: "set_level", ID: 0x00, Direction: zcl.ClientToServer, ManufacturerSpecific: true, Argument: testLevel}

func testCommandMap() *attribute.Map {
	return attribute.MustMap(attribute.Cluster{
		ID:           testCommandClusterID,
		Name:         "Vendor Level",
		Manufacturer: testManufacturer,
		Attributes: []attribute.Descriptor{
			{Name: "level", ID: 0x0000, DataType: zcl.TypeEnum8, ManufacturerSpecific: true, Enumeration: testLevel, Kind: attribute.CommandBacked, Command: "set_level", ReadBack: true,
				Entity: &attribute.Entity{TranslationKey: "level", FallbackName: "Level", Type: attribute.StandardEntity}},
		},
		Commands: []attribute.Command{testSetLevel},
	})
}

func testStandardMap() *attribute.Map {
	return attribute.MustMap(attribute.Cluster{
		ID:   zcl.OnOffId,
		Name: "OnOff",
		Attributes: []attribute.Descriptor{
			{Name: "on_off", ID: 0x0000, DataType: zcl.TypeBoolean},
		},
	})
}

func testDevice() da.Device {
	return da.BaseDevice{DeviceIdentifier: zigbee.GenerateLocalAdministeredIEEEAddress()}
}
