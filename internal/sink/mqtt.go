// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package sink

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/luxcast/luxcast/internal/config"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

// MQTTSink publishes decoded messages to an MQTT broker. Regular messages
// go to {prefix}/messages/{type}; backend envelopes go to
// {prefix}/backend/{mode} verbatim for the pairing handler.
type MQTTSink struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// mqttRecord is the JSON shape published for a decoded message.
type mqttRecord struct {
	Type         string    `json:"type"`
	Size         int       `json:"size"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMs   int64     `json:"duration_ms"`
	Transmission string    `json:"transmission_id,omitempty"`
	Data         []byte    `json:"data"`
}

// generateClientID creates a random MQTT client ID
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "luxcast_" + hex.EncodeToString(bytes)
}

// NewMQTTSink connects to the configured broker. Returns (nil, nil) when
// the sink is disabled.
func NewMQTTSink(cfg config.MQTTConfig) (*MQTTSink, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Set connection handlers
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Successfully connected to broker: %s", cfg.Broker)

	return &MQTTSink{client: client, cfg: cfg}, nil
}

// Name identifies the sink in delivery logs.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver publishes a decoded message. The publish token is waited on in
// the background so delivery never stalls the dispatcher.
func (s *MQTTSink) Deliver(msg *luxwire.Message) error {
	if s == nil || !s.client.IsConnected() {
		return fmt.Errorf("MQTT not connected")
	}

	topic, data, err := renderMessage(s.cfg.TopicPrefix, msg)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, s.cfg.QoS, s.cfg.Retain, data)

	// Wait for completion in background
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT ERROR: Failed to publish to %s: %v", topic, token.Error())
		}
	}()

	return nil
}

// renderMessage picks the topic and payload for a decoded message. Backend
// envelopes are forwarded as-is; everything else is wrapped in a record.
func renderMessage(prefix string, msg *luxwire.Message) (string, []byte, error) {
	if mode, ok := BackendMode(msg.Data); ok {
		return fmt.Sprintf("%s/backend/%s", prefix, mode), msg.Data, nil
	}

	record := mqttRecord{
		Type:       msg.Type,
		Size:       msg.Size,
		Timestamp:  msg.Timestamp,
		DurationMs: msg.Duration.Milliseconds(),
		Data:       msg.Data,
	}
	if msg.Transmission != uuid.Nil {
		record.Transmission = msg.Transmission.String()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	topic := fmt.Sprintf("%s/messages/%s", prefix, strings.ToLower(msg.Type))
	return topic, data, nil
}

// Close gracefully disconnects from the MQTT broker.
func (s *MQTTSink) Close() {
	if s != nil && s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		log.Println("MQTT: Disconnected from broker")
	}
}
