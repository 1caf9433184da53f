package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTPublisher publishes each event to <prefix>/<type>.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return NewMQTTPublisherWithClient(client, cfg.TopicPrefix, cfg.QoS, logger), nil
}

func NewMQTTPublisherWithClient(client mqtt.Client, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		prefix: prefix,
		qos:    qos,
		logger: logger,
	}
}

// Topic returns the topic an event type is published on.
func (p *MQTTPublisher) Topic(t EventType) string {
	if p.prefix == "" {
		return string(t)
	}
	return p.prefix + "/" + string(t)
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.Topic(event.Type)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, waiting up to 250ms for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
