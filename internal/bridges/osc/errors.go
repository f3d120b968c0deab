package osc

import "errors"

var (
	// ErrNoArguments is returned for an OSC message without arguments.
	ErrNoArguments = errors.New("osc bridge: message has no arguments")

	// ErrTransport is returned by Run when the OSC socket fails.
	ErrTransport = errors.New("osc bridge: transport failure")

	// ErrSendFailed is returned when a command cannot be sent to the device.
	ErrSendFailed = errors.New("osc bridge: send failed")

	// ErrStatePublish is returned when a state value cannot be published.
	ErrStatePublish = errors.New("osc bridge: state publish failed")
)
