package proxy

import (
	"context"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zcl/commands/global"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk/attribute"
	"github.com/stretchr/testify/mock"
)

type MockPrimitives struct {
	mock.Mock
}

func (m *MockPrimitives) WriteAttributes(ctx context.Context, manufacturer zigbee.ManufacturerCode, attributes map[zcl.AttributeID]zcl.AttributeDataTypeValue) ([]global.WriteAttributesResponseRecord, error) {
	args := m.Called(ctx, manufacturer, attributes)
	return args.Get(0).([]global.WriteAttributesResponseRecord), args.Error(1)
}

func (m *MockPrimitives) ReadAttributes(ctx context.Context, manufacturer zigbee.ManufacturerCode, attributes []zcl.AttributeID) error {
	return m.Called(ctx, manufacturer, attributes).Error(0)
}

func (m *MockPrimitives) IssueCommand(ctx context.Context, manufacturer zigbee.ManufacturerCode, command attribute.Command, argument any) error {
	return m.Called(ctx, manufacturer, command, argument).Error(0)
}

var _ Primitives = (*MockPrimitives)(nil)

type MockUpdateSink struct {
	mock.Mock
}

func (m *MockUpdateSink) UpdateAttribute(ctx context.Context, cluster zigbee.ClusterID, id zcl.AttributeID, value zcl.AttributeDataTypeValue) {
	m.Called(ctx, cluster, id, value)
}

var _ UpdateSink = (*MockUpdateSink)(nil)
