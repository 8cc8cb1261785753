// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package events

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tomtom215/roadwatch/internal/logging"
)

// MQTTSinkConfig configures an MQTTSink.
type MQTTSinkConfig struct {
	Broker   string
	ClientID string
	// Topic is the prefix; reports go to "<Topic>/<partition>".
	Topic string
	QoS   byte
	// ConnectTimeout bounds the initial connection. Zero means 10s.
	ConnectTimeout time.Duration
}

// MQTTSink publishes reports to per-partition MQTT topics.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTSink connects to the broker. The client reconnects on its own
// after the first connection succeeds.
func NewMQTTSink(cfg MQTTSinkConfig) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logging.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logging.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return newMQTTSinkFromClient(client, cfg.Topic, cfg.QoS), nil
}

func newMQTTSinkFromClient(client mqtt.Client, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Topic returns the topic a partition's reports are published to.
func (s *MQTTSink) Topic(partition string) string {
	return s.topic + "/" + routeToken(partition)
}

// Publish implements Sink. It waits for the broker acknowledgement at
// QoS 1 and 2, or until ctx is done.
func (s *MQTTSink) Publish(ctx context.Context, m Message) error {
	token := s.client.Publish(s.Topic(m.Partition), s.qos, false, m.Payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects, allowing 250ms for in-flight work.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
