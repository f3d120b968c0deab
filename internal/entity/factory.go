package entity

import (
	"fmt"
	"strings"
)

// Defaults used when a Factory field is left empty.
const (
	DefaultNamespace      = "homeassistant"
	DefaultNamePrefix     = "Osc"
	DefaultUniqueIDPrefix = "osc."
)

// Hub-side scaling templates. Floats travel as [-1, 1] and integers as
// [0, 255]; the hub displays and accepts both as 0–100.
const (
	floatValueTemplate   = "{{ ((value | float) + 1) * 50 }}"
	floatCommandTemplate = "{{ (value / 50) - 1 }}"
	intValueTemplate     = "{{ (value | float) / 2.55 }}"
	intCommandTemplate   = "{{ value * 2.55 }}"
)

// Factory derives entities from OSC addresses.
//
// Derive is pure: the same address and value kind always produce the same Entity.
type Factory struct {
	Namespace      string
	NamePrefix     string
	UniqueIDPrefix string
}

// NewFactory returns a Factory using the given namespace and the default prefixes.
func NewFactory(namespace string) *Factory {
	return &Factory{Namespace: namespace}
}

// Derive builds the Entity for address from the kind of sample.
//
// The name is the prefix plus the last non-empty address segment. The unique id
// is the unique-id prefix plus every segment (including the empty leading one)
// joined by "_", so "/a/x" and "/b/x" keep distinct ids.
func (f *Factory) Derive(address string, sample Value) (Entity, error) {
	base := lastSegment(address)
	if base == "" {
		return Entity{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	var component Component
	switch sample.Kind() {
	case KindBool:
		component = ComponentSwitch
	case KindInt, KindFloat:
		component = ComponentNumber
	default:
		return Entity{}, fmt.Errorf("%w: %s", ErrUnsupportedValueKind, sample.Kind())
	}

	namespace := orDefault(f.Namespace, DefaultNamespace)
	name := orDefault(f.NamePrefix, DefaultNamePrefix) + base
	topicBase := fmt.Sprintf("%s/%s/%s", namespace, component, name)

	e := Entity{
		Name:         name,
		UniqueID:     orDefault(f.UniqueIDPrefix, DefaultUniqueIDPrefix) + strings.Join(strings.Split(address, "/"), "_"),
		Component:    component,
		ValueKind:    sample.Kind(),
		StateTopic:   topicBase + "/state",
		CommandTopic: topicBase + "/set",
		ConfigTopic:  topicBase + "/config",
	}

	switch sample.Kind() {
	case KindBool:
		e.DeviceClass = DeviceClassSwitch
	case KindFloat:
		e.ValueTemplate = floatValueTemplate
		e.CommandTemplate = floatCommandTemplate
	case KindInt:
		e.ValueTemplate = intValueTemplate
		e.CommandTemplate = intCommandTemplate
	}

	return e, nil
}

// lastSegment returns the last non-empty "/"-separated segment of address.
func lastSegment(address string) string {
	segments := strings.Split(address, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
