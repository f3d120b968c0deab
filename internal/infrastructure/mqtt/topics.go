package mqtt

import (
	"fmt"
	"strings"
)

// Availability payloads understood by Home Assistant's default
// payload_available / payload_not_available.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// DefaultNamespace is Home Assistant's default discovery prefix.
const DefaultNamespace = "homeassistant"

// commandSuffix terminates every entity command topic.
const commandSuffix = "/set"

// Topics builds the bridge-level MQTT topics.
//
// Entity topics ({namespace}/{component}/{name}/config|state|set) are derived
// by the entity factory; Topics covers what belongs to the connection itself.
//
//	topics := mqtt.Topics{Namespace: "homeassistant", BridgeID: "vrchat"}
//	topics.Availability() // "homeassistant/osc_bridge/vrchat/availability"
//	topics.Commands()     // "homeassistant/#"
type Topics struct {
	Namespace string
	BridgeID  string
}

func (t Topics) namespace() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// Availability returns the retained online/offline topic of this bridge.
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/osc_bridge/%s/availability", t.namespace(), t.BridgeID)
}

// Commands returns the wildcard subscription carrying hub commands.
//
// The whole namespace is subscribed; messages that are not a registered
// entity's command topic are discarded by the bridge.
func (t Topics) Commands() string {
	return t.namespace() + "/#"
}

// IsCommandTopic reports whether topic has the shape of an entity command topic.
func IsCommandTopic(topic string) bool {
	return strings.HasSuffix(topic, commandSuffix)
}

// validPublishTopic reports whether topic is free of wildcard characters.
func validPublishTopic(topic string) bool {
	return !strings.ContainsAny(topic, "+#")
}
