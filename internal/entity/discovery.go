package entity

import (
	"context"
	"encoding/json"
	"fmt"
)

// Number entity range shown by the hub. Matches the scaling templates.
const (
	numberMin  = 0
	numberMax  = 100
	numberMode = "slider"
)

// MQTTPublisher is the subset of the MQTT client used for discovery.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Publisher announces an entity to the hub.
type Publisher interface {
	Publish(ctx context.Context, e Entity) error
}

// DeviceInfo groups every entity of the bridge under one hub device.
type DeviceInfo struct {
	Identifiers   []string `json:"identifiers,omitempty"`
	Name          string   `json:"name,omitempty"`
	SuggestedArea string   `json:"suggested_area,omitempty"`
}

// DiscoveryConfig is the JSON record published on an entity's config topic.
type DiscoveryConfig struct {
	Name              string      `json:"name"`
	UniqueID          string      `json:"unique_id"`
	ObjectID          string      `json:"object_id,omitempty"`
	DeviceClass       string      `json:"device_class,omitempty"`
	StateTopic        string      `json:"state_topic"`
	CommandTopic      string      `json:"command_topic"`
	ValueTemplate     string      `json:"value_template,omitempty"`
	CommandTemplate   string      `json:"command_template,omitempty"`
	AvailabilityTopic string      `json:"availability_topic,omitempty"`
	Min               *float64    `json:"min,omitempty"`
	Max               *float64    `json:"max,omitempty"`
	Mode              string      `json:"mode,omitempty"`
	Device            *DeviceInfo `json:"device,omitempty"`
}

// DiscoveryOptions configures a DiscoveryPublisher.
type DiscoveryOptions struct {
	// QoS for config messages. Values below 1 are raised to 1.
	QoS byte

	// Retain keeps the config on the broker so the hub rediscovers
	// entities after it restarts.
	Retain bool

	// AvailabilityTopic is the bridge LWT topic. Optional.
	AvailabilityTopic string

	// Device is attached to every config when it has a name. Optional.
	Device DeviceInfo
}

// DiscoveryPublisher publishes Home Assistant discovery configs over MQTT.
type DiscoveryPublisher struct {
	mqtt MQTTPublisher
	opts DiscoveryOptions
}

// NewDiscoveryPublisher creates a publisher writing through client.
func NewDiscoveryPublisher(client MQTTPublisher, opts DiscoveryOptions) *DiscoveryPublisher {
	if opts.QoS < 1 {
		opts.QoS = 1
	}
	return &DiscoveryPublisher{mqtt: client, opts: opts}
}

// Config builds the discovery record for e.
func (p *DiscoveryPublisher) Config(e Entity) DiscoveryConfig {
	cfg := DiscoveryConfig{
		Name:              e.Name,
		UniqueID:          e.UniqueID,
		ObjectID:          e.UniqueID,
		DeviceClass:       e.DeviceClass,
		StateTopic:        e.StateTopic,
		CommandTopic:      e.CommandTopic,
		ValueTemplate:     e.ValueTemplate,
		CommandTemplate:   e.CommandTemplate,
		AvailabilityTopic: p.opts.AvailabilityTopic,
	}

	if e.Component == ComponentNumber {
		lo, hi := float64(numberMin), float64(numberMax)
		cfg.Min = &lo
		cfg.Max = &hi
		cfg.Mode = numberMode
	}

	if p.opts.Device.Name != "" {
		device := p.opts.Device
		cfg.Device = &device
	}

	return cfg
}

// Publish serialises the discovery record for e and publishes it on the
// entity's config topic with at-least-once delivery.
func (p *DiscoveryPublisher) Publish(ctx context.Context, e Entity) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	payload, err := json.Marshal(p.Config(e))
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", ErrPublishFailed, e.Name, err)
	}

	if err := p.mqtt.Publish(e.ConfigTopic, payload, p.opts.QoS, p.opts.Retain); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, e.ConfigTopic, err)
	}
	return nil
}
