package mqttsink

import (
	"context"
	"encoding/json"
	"errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zquirk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type token struct {
	complete bool
	err      error
}

func (t token) Wait() bool                     { return t.complete }
func (t token) WaitTimeout(time.Duration) bool { return t.complete }
func (t token) Error() error                   { return t.err }

func (t token) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.complete {
		close(ch)
	}
	return ch
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

func testUpdate(changed bool) zquirk.AttributeUpdate {
	return zquirk.AttributeUpdate{
		Device:    da.BaseDevice{DeviceIdentifier: zigbee.IEEEAddress(0x0011223344556677)},
		ClusterID: 0xfc01,
		Attribute: 0x0000,
		Value:     zcl.AttributeDataTypeValue{DataType: zcl.TypeData16, Value: []byte{0x00, 0x02}},
		Changed:   changed,
	}
}

func TestSink_Publish(t *testing.T) {
	t.Run("publishes changed values as json on a per attribute topic", func(t *testing.T) {
		p := &mockPublisher{}
		defer p.AssertExpectations(t)

		var published []byte

		p.On("Publish", "home/0011223344556677/fc01/0000", byte(1), true, mock.Anything).
			Run(func(args mock.Arguments) { published = args.Get(3).([]byte) }).
			Return(token{complete: true}).Once()

		s := New(p, Config{TopicPrefix: "home", QoS: 1, Retain: true})

		err := s.Publish(context.Background(), testUpdate(true))
		require.NoError(t, err)

		var payload Payload
		require.NoError(t, json.Unmarshal(published, &payload))

		assert.Equal(t, "0011223344556677", payload.Device)
		assert.Equal(t, uint16(0xfc01), payload.Cluster)
		assert.Equal(t, uint8(zcl.TypeData16), payload.DataType)
		assert.Equal(t, "0200", payload.Value)
		assert.True(t, payload.Changed)
	})

	t.Run("skips unchanged values unless configured", func(t *testing.T) {
		p := &mockPublisher{}
		defer p.AssertExpectations(t)

		s := New(p, Config{})
		require.NoError(t, s.Publish(context.Background(), testUpdate(false)))
		p.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		p.On("Publish", "zquirk/0011223344556677/fc01/0000", byte(0), false, mock.Anything).Return(token{complete: true}).Once()

		s = New(p, Config{Unchanged: true})
		require.NoError(t, s.Publish(context.Background(), testUpdate(false)))
	})

	t.Run("returns the broker error", func(t *testing.T) {
		p := &mockPublisher{}
		expected := errors.New("not connected")

		p.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token{complete: true, err: expected})

		err := New(p, Config{}).Publish(context.Background(), testUpdate(true))
		assert.ErrorIs(t, err, expected)
	})

	t.Run("returns a timeout when the token never completes", func(t *testing.T) {
		p := &mockPublisher{}

		p.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token{})

		err := New(p, Config{Timeout: time.Millisecond}).Publish(context.Background(), testUpdate(true))
		assert.ErrorIs(t, err, ErrPublishTimeout)
	})
}

type listener struct {
	f func(context.Context, zquirk.AttributeUpdate) error
}

func (l *listener) Listen(f func(context.Context, zquirk.AttributeUpdate) error) {
	l.f = f
}

func TestSink_Attach(t *testing.T) {
	t.Run("publishes updates delivered to the listener", func(t *testing.T) {
		p := &mockPublisher{}
		defer p.AssertExpectations(t)

		p.On("Publish", "zquirk/0011223344556677/fc01/0000", byte(0), false, mock.Anything).Return(token{complete: true}).Once()

		l := &listener{}
		New(p, Config{}).Attach(l)

		require.NotNil(t, l.f)
		assert.NoError(t, l.f(context.Background(), testUpdate(true)))
	})
}
