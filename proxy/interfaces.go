package proxy

import (
	"context"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
)

// Writer writes raw attribute values to the device, returning the per attribute status records.
type Writer interface {
	WriteAttributes(ctx context.Context, manufacturer zigbee.ManufacturerCode, attributes map[zcl.AttributeID]zcl.AttributeDataTypeValue) ([]global.WriteAttributesResponseRecord, error)
}

// Reader requests a read of attributes. The response reaches the host through its normal report path, so only
// the success of the request is returned.
type Reader interface {
	ReadAttributes(ctx context.Context, manufacturer zigbee.ManufacturerCode, attributes []zcl.AttributeID) error
}

// Commander issues a cluster command and waits for it to complete.
type Commander interface {
	IssueCommand(ctx context.Context, manufacturer zigbee.ManufacturerCode, command attribute.Command, argument any) error
}

type Primitives interface {
	Writer
	Reader
	Commander
}

// UpdateSink receives attribute values observed on, or derived from, the device.
type UpdateSink interface {
	UpdateAttribute(ctx context.Context, cluster zigbee.ClusterID, id zcl.AttributeID, value zcl.AttributeDataTypeValue)
}
