package osc

import (
	"fmt"
	"net"
	"strconv"

	gosc "github.com/hypebeast/go-osc/osc"

	"github.com/nerrad567/osc-bridge/internal/infrastructure/config"
)

// Sender sends OSC messages to the target application over UDP.
//
// Thread Safety: Send is safe for concurrent use; every call uses its own socket.
type Sender struct {
	client *gosc.Client
	target string
}

// NewSender creates a Sender for cfg.TargetHost:cfg.TargetPort.
//
// When cfg.LocalHost or cfg.LocalPort is set, outgoing packets are sent from
// that address.
func NewSender(cfg config.OSCConfig) (*Sender, error) {
	if cfg.TargetHost == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}
	if cfg.TargetPort < 1 || cfg.TargetPort > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrInvalidTarget, cfg.TargetPort)
	}

	client := gosc.NewClient(cfg.TargetHost, cfg.TargetPort)
	if cfg.LocalHost != "" || cfg.LocalPort != 0 {
		if err := client.SetLocalAddr(cfg.LocalHost, cfg.LocalPort); err != nil {
			return nil, fmt.Errorf("%w: local %s:%d: %w", ErrInvalidTarget, cfg.LocalHost, cfg.LocalPort, err)
		}
	}

	return &Sender{
		client: client,
		target: net.JoinHostPort(cfg.TargetHost, strconv.Itoa(cfg.TargetPort)),
	}, nil
}

// Send sends a single message to address with the given arguments.
func (s *Sender) Send(address string, args ...any) error {
	msg := gosc.NewMessage(address, args...)
	if err := s.client.Send(msg); err != nil {
		return fmt.Errorf("%w: %s to %s: %w", ErrSendFailed, address, s.target, err)
	}
	return nil
}

// Target returns the destination as host:port.
func (s *Sender) Target() string {
	return s.target
}
