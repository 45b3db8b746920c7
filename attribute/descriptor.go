package attribute

import (
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/wire"
)

// Kind selects how a write to an attribute is carried to the device.
type Kind int

const (
	// PassThrough attributes are written to the device unchanged.
	PassThrough Kind = iota
	// Alias attributes do not exist on the device, they are a second encoding of the raw value of another
	// attribute in the same cluster.
	Alias
	// CommandBacked attributes are changed by issuing a cluster command rather than by a write.
	CommandBacked
)

func (k Kind) String() string {
	switch k {
	case PassThrough:
		return "PassThrough"
	case Alias:
		return "Alias"
	case CommandBacked:
		return "CommandBacked"
	default:
		return "Unknown"
	}
}

type EntityType int

const (
	ConfigEntity EntityType = iota
	StandardEntity
)

// Entity carries the presentation hints a host uses when exposing an attribute.
type Entity struct {
	TranslationKey string
	FallbackName   string
	Type           EntityType
}

type Descriptor struct {
	Name                 string
	ID                   zcl.AttributeID
	DataType             zcl.AttributeDataType
	ManufacturerSpecific bool
	Kind                 Kind

	// Enumeration is set for enum typed attributes.
	Enumeration *wire.Enumeration

	// Underlying and Codec are set for Alias attributes.
	Underlying string
	Codec      *wire.Codec

	// Command and ReadBack are set for CommandBacked attributes.
	Command  string
	ReadBack bool

	Entity *Entity
}

type Command struct {
	Name                 string
	ID                   zcl.CommandIdentifier
	Direction            zcl.Direction
	ManufacturerSpecific bool
	Argument             *wire.Enumeration
}

// Cluster is the declaration of one vendor cluster, Manufacturer is the vendor code used on the wire when
// attributes or commands are manufacturer specific.
type Cluster struct {
	ID           zigbee.ClusterID
	Name         string
	Manufacturer zigbee.ManufacturerCode
	Attributes   []Descriptor
	Commands     []Command
}

// EnumArgument is the payload of a command whose only argument is an 8-bit enumeration.
type EnumArgument struct {
	Value uint8
}
