package osc

import "errors"

// Domain-specific errors for OSC transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrListenFailed is returned when the UDP listen socket cannot be opened.
	ErrListenFailed = errors.New("osc: listen failed")

	// ErrReceiveFailed is returned when reading from the socket fails.
	// The listener cannot be used afterwards.
	ErrReceiveFailed = errors.New("osc: receive failed")

	// ErrMalformedPacket is returned when a datagram is not a valid OSC packet.
	ErrMalformedPacket = errors.New("osc: malformed packet")

	// ErrSendFailed is returned when a message cannot be encoded or sent.
	ErrSendFailed = errors.New("osc: send failed")

	// ErrInvalidTarget is returned when the target or local address is unusable.
	ErrInvalidTarget = errors.New("osc: invalid target address")
)
