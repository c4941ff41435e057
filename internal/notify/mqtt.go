package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"ledmap.transitboard.org/internal/refresh"
)

const (
	mqttConnectTimeout       = 10 * time.Second
	mqttConnectRetryInterval = 30 * time.Second
	mqttQoS                  = 1
	offlinePayload           = `{"state":"offline"}`
)

var errMQTTTimeout = errors.New("timed out")

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// MQTT publishes tick statuses (retained) on Topic and alert events on
// Topic/events. The broker marks the board offline if the process dies.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewMQTT starts connecting to the broker and returns without waiting for the
// connection. An unreachable broker is retried in the background; until it
// answers, publications fail fast with mqtt.ErrNotConnected.
func NewMQTT(config MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if config.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "mqtt"), slog.String("broker", config.Broker))

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(mqttConnectRetryInterval)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetWill(config.Topic, offlinePayload, mqttQoS, true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", slog.String("error", err.Error()))
	})

	client := mqtt.NewClient(opts)
	client.Connect()
	logger.Info("connecting to MQTT broker")

	return newMQTTWithClient(client, config.Topic, logger), nil
}

func newMQTTWithClient(client mqtt.Client, topic string, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{client: client, topic: topic, logger: logger}
}

// PublishStatus publishes status as retained JSON.
func (m *MQTT) PublishStatus(ctx context.Context, status refresh.TickStatus) error {
	return m.publish(ctx, m.topic, true, status)
}

// Notify publishes event on the events subtopic.
func (m *MQTT) Notify(ctx context.Context, event Event) error {
	return m.publish(ctx, m.topic+"/events", false, event)
}

func (m *MQTT) publish(ctx context.Context, topic string, retained bool, v any) error {
	if !m.client.IsConnectionOpen() {
		return fmt.Errorf("publish to %s: %w", topic, mqtt.ErrNotConnected)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	token := m.client.Publish(topic, mqttQoS, retained, payload)
	timeout := mqttConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: %w", topic, errMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close marks the board offline and disconnects from the broker.
func (m *MQTT) Close() {
	if m.client.IsConnectionOpen() {
		token := m.client.Publish(m.topic, mqttQoS, true, []byte(offlinePayload))
		if !token.WaitTimeout(time.Second) || token.Error() != nil {
			m.logger.Warn("failed to publish offline state")
		}
	}
	m.client.Disconnect(250)
}
