package entity

// Component is the Home Assistant MQTT platform an entity is published under.
type Component string

// Supported components.
const (
	ComponentSwitch Component = "switch"
	ComponentNumber Component = "number"
)

// DeviceClassSwitch is the device class given to boolean entities.
const DeviceClassSwitch = "switch"

// Entity is the hub-side definition of one OSC parameter.
//
// An Entity is derived once from the first value seen on its address and is
// never mutated afterwards. Two entities are the same entity iff their names
// match; see Same.
type Entity struct {
	// Name is the display name, "<prefix><last address segment>".
	Name string `json:"name"`

	// UniqueID is the stable hub identifier derived from every address segment.
	UniqueID string `json:"unique_id"`

	// Component is switch for booleans and number for int/float values.
	Component Component `json:"component"`

	// ValueKind is the OSC argument kind the entity was registered with.
	ValueKind ValueKind `json:"-"`

	// DeviceClass is set only for switch entities.
	DeviceClass string `json:"device_class,omitempty"`

	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
	ConfigTopic  string `json:"config_topic"`

	// ValueTemplate and CommandTemplate scale between the OSC wire range and
	// the 0–100 range shown by the hub. Empty for switches.
	ValueTemplate   string `json:"value_template,omitempty"`
	CommandTemplate string `json:"command_template,omitempty"`
}

// Same reports whether e and other denote the same hub entity.
func (e Entity) Same(other Entity) bool {
	return e.Name == other.Name
}

// Mapping pairs an OSC address with its registered entity.
type Mapping struct {
	Address string `json:"address"`
	Kind    string `json:"kind"`
	Entity  Entity `json:"entity"`
}
