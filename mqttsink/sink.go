// Package mqttsink publishes cached attribute updates of attached devices to an MQTT broker.
package mqttsink

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zquirk"
	"time"
)

const DefaultTopicPrefix = "zquirk"
const DefaultPublishTimeout = 5 * time.Second

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var _ Publisher = (mqtt.Client)(nil)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	TopicPrefix string
	QoS         byte
	Retain      bool
	// Unchanged also publishes updates that did not change the cached value.
	Unchanged bool
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultPublishTimeout
	}

	if c.ClientID == "" {
		c.ClientID = "zquirk"
	}

	return c
}

type Payload struct {
	Device    string `json:"device"`
	Cluster   uint16 `json:"cluster"`
	Attribute uint16 `json:"attribute"`
	DataType  uint8  `json:"data_type"`
	Value     any    `json:"value"`
	Changed   bool   `json:"changed"`
}

type Sink struct {
	publisher Publisher
	config    Config
	logger    logwrap.Logger
}

func New(p Publisher, cfg Config) *Sink {
	return &Sink{publisher: p, config: cfg.withDefaults(), logger: logwrap.New(discard.Discard())}
}

func (s *Sink) WithLogWrapLogger(l logwrap.Logger) {
	s.logger = l
}

// Dial connects a paho client to the configured broker.
func Dial(cfg Config) (mqtt.Client, error) {
	cfg = cfg.withDefaults()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect: %w", ErrPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return client, nil
}

// Listener is implemented by zquirk.Registry.
type Listener interface {
	Listen(func(context.Context, zquirk.AttributeUpdate) error)
}

var _ Listener = (*zquirk.Registry)(nil)

// Attach registers the sink so every attribute update is published.
func (s *Sink) Attach(l Listener) {
	l.Listen(s.Publish)
}

func (s *Sink) Topic(u zquirk.AttributeUpdate) string {
	return fmt.Sprintf("%s/%s/%04x/%04x", s.config.TopicPrefix, u.Device.Identifier().String(), uint16(u.ClusterID), uint16(u.Attribute))
}

// wireOrder undoes zcl holding dataN words last byte first.
func wireOrder(dt zcl.AttributeDataType, b []byte) []byte {
	switch dt {
	case zcl.TypeData8, zcl.TypeData16, zcl.TypeData24, zcl.TypeData32:
		r := make([]byte, len(b))
		for i, v := range b {
			r[len(b)-1-i] = v
		}
		return r
	default:
		return b
	}
}

func (s *Sink) Publish(ctx context.Context, u zquirk.AttributeUpdate) error {
	if !u.Changed && !s.config.Unchanged {
		return nil
	}

	value := u.Value.Value
	if b, ok := value.([]byte); ok {
		value = hex.EncodeToString(wireOrder(u.Value.DataType, b))
	}

	data, err := json.Marshal(Payload{
		Device:    u.Device.Identifier().String(),
		Cluster:   uint16(u.ClusterID),
		Attribute: uint16(u.Attribute),
		DataType:  uint8(u.Value.DataType),
		Value:     value,
		Changed:   u.Changed,
	})
	if err != nil {
		return fmt.Errorf("mqtt payload: %w", err)
	}

	topic := s.Topic(u)

	token := s.publisher.Publish(topic, s.config.QoS, s.config.Retain, data)
	if !token.WaitTimeout(s.config.Timeout) {
		s.logger.Warn(ctx, "Timed out publishing attribute update.", logwrap.Datum("Topic", topic))
		return ErrPublishTimeout
	}

	if err := token.Error(); err != nil {
		s.logger.Warn(ctx, "Failed to publish attribute update.", logwrap.Datum("Topic", topic), logwrap.Err(err))
		return err
	}

	s.logger.Debug(ctx, "Published attribute update.", logwrap.Datum("Topic", topic))
	return nil
}
