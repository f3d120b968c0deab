package entity

import "errors"

// Domain errors for entity mapping and value translation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnsupportedValueKind is returned when an OSC argument is not a bool,
	// int32, or float32. The message carrying it is dropped.
	ErrUnsupportedValueKind = errors.New("entity: unsupported value kind")

	// ErrParse is returned when a hub payload is neither ON/OFF nor a number.
	ErrParse = errors.New("entity: cannot parse payload")

	// ErrKindMismatch is returned when a value's kind differs from the kind
	// the entity was registered with.
	ErrKindMismatch = errors.New("entity: value kind does not match entity")

	// ErrInvalidAddress is returned when an OSC address has no non-empty segment.
	ErrInvalidAddress = errors.New("entity: invalid OSC address")

	// ErrNameConflict is returned when an address derives the same entity name
	// as an address that is already registered.
	ErrNameConflict = errors.New("entity: derived name already owned by another address")

	// ErrPublishFailed is returned when the discovery record cannot be published.
	ErrPublishFailed = errors.New("entity: discovery publish failed")
)
