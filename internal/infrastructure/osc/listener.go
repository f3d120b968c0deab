package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	gosc "github.com/hypebeast/go-osc/osc"

	"github.com/nerrad567/osc-bridge/internal/infrastructure/config"
)

// Listener receives OSC packets from a UDP socket.
//
// Receive is meant to be called from a single goroutine; Close may be
// called from any goroutine and unblocks a pending Receive.
type Listener struct {
	conn   net.PacketConn
	server *gosc.Server

	closeOnce sync.Once
	closeErr  error
}

// Listen opens the UDP socket named by cfg.Listen.
func Listen(cfg config.OSCConfig) (*Listener, error) {
	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListenFailed, cfg.Listen, err)
	}

	if cfg.ReadBuffer > 0 {
		if udp, ok := conn.(*net.UDPConn); ok {
			// Best effort; the OS may cap the size.
			_ = udp.SetReadBuffer(cfg.ReadBuffer)
		}
	}

	return &Listener{
		conn:   conn,
		server: &gosc.Server{Addr: cfg.Listen},
	}, nil
}

// Addr returns the local address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Receive blocks until the next packet arrives and returns the messages it
// carries, with bundles flattened.
//
// Cancelling ctx closes the listener; Receive then returns ctx.Err().
// A datagram that cannot be parsed yields ErrMalformedPacket and leaves the
// listener usable. Any socket error yields ErrReceiveFailed.
func (l *Listener) Receive(ctx context.Context) ([]*gosc.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	packet, err := l.server.ReceivePacket(l.conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isSocketError(err) {
			return nil, fmt.Errorf("%w: %w", ErrReceiveFailed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	// The decoder yields no packet and no error for datagrams that start
	// with neither '/' nor '#'.
	if packet == nil {
		return nil, fmt.Errorf("%w: not an OSC message or bundle", ErrMalformedPacket)
	}

	return Messages(packet), nil
}

// Close closes the socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// isSocketError separates read failures from packet parse failures.
// Reads from a net.PacketConn fail with *net.OpError; the decoder never does.
func isSocketError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.Is(err, net.ErrClosed)
}

// Messages returns every message in packet, descending into nested bundles.
// Messages directly in a bundle come before those of its sub-bundles.
func Messages(packet gosc.Packet) []*gosc.Message {
	switch p := packet.(type) {
	case *gosc.Message:
		return []*gosc.Message{p}
	case *gosc.Bundle:
		out := make([]*gosc.Message, 0, len(p.Messages))
		out = append(out, p.Messages...)
		for _, b := range p.Bundles {
			out = append(out, Messages(b)...)
		}
		return out
	default:
		return nil
	}
}
