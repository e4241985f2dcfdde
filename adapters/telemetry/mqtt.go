// Package telemetry mirrors classified device events to an MQTT broker so
// external automations (dashboards, home automation) can observe the speaker
// without touching the bridge connection.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/openmico/speakerbridge/domain/repositories"
)

const publishTimeout = 5 * time.Second

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Broker   string // e.g. "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
}

// MQTTPublisher publishes events to speaker/<device_id>/events/<kind>.
// Delivery is best-effort: a failed publish is logged and dropped.
type MQTTPublisher struct {
	client mqtt.Client
	logger *zap.Logger
}

var _ repositories.EventPublisher = (*MQTTPublisher)(nil)

// envelope is the published payload wrapper.
type envelope struct {
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(config MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if config.ClientID == "" {
		config.ClientID = "speakerbridge"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.Info("Connected to MQTT broker", zap.String("broker", config.Broker))
	return &MQTTPublisher{client: client, logger: logger}, nil
}

// Publish implements repositories.EventPublisher.
func (p *MQTTPublisher) Publish(deviceID, kind string, payload any) {
	topic := fmt.Sprintf("speaker/%s/events/%s", deviceID, kind)

	data, err := json.Marshal(envelope{
		DeviceID:  deviceID,
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		p.logger.Warn("Failed to encode telemetry event", zap.Error(err))
		return
	}

	token := p.client.Publish(topic, 0, false, data)
	go func() {
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			p.logger.Warn("Failed to publish telemetry event",
				zap.String("topic", topic), zap.Error(token.Error()))
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
