package osc

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/osc-bridge/internal/entity"
	osctransport "github.com/nerrad567/osc-bridge/internal/infrastructure/osc"
	"github.com/nerrad567/osc-bridge/internal/metrics"
)

// Drop reasons, used as the metrics "reason" label.
const (
	reasonNoArguments     = "no_arguments"
	reasonUnsupportedKind = "unsupported_kind"
	reasonInvalidAddress  = "invalid_address"
	reasonKindMismatch    = "kind_mismatch"
	reasonNameConflict    = "name_conflict"
	reasonParse           = "parse_error"
	reasonMalformed       = "malformed_packet"
	reasonDiscovery       = "discovery_failed"
	reasonSend            = "send_failed"
	reasonPublish         = "publish_failed"
	reasonUnrouted        = "unrouted"
	reasonOther           = "other"
)

// runOSCIngress is Ingress A. It returns nil on cancellation and
// ErrTransport when the socket fails.
func (b *Bridge) runOSCIngress(ctx context.Context) error {
	for {
		msgs, err := b.receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, osctransport.ErrMalformedPacket) {
				b.drop(metrics.DirectionOSC, reasonMalformed)
				b.logWarn("dropping malformed OSC packet", "error", err)
				continue
			}
			b.logError("OSC receive failed", "error", err)
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

		for _, msg := range msgs {
			if err := b.HandleOSCMessage(ctx, msg.Address, msg.Arguments); err != nil {
				b.logDrop(metrics.DirectionOSC, "address", msg.Address, err)
			}
		}
	}
}

// HandleOSCMessage processes one OSC message: it registers the address on
// first sight and publishes the first argument as the entity's state.
func (b *Bridge) HandleOSCMessage(ctx context.Context, address string, args []any) error {
	b.stats.oscReceived.Add(1)
	b.metrics.MessageReceived(metrics.DirectionOSC)

	if len(args) == 0 {
		return fmt.Errorf("%w: %s", ErrNoArguments, address)
	}

	v, err := entity.ValueFromArg(args[0])
	if err != nil {
		return err
	}

	e, created, err := b.registry.GetOrRegister(ctx, address, v)
	if err != nil {
		return err
	}
	if created {
		b.onRegistered(ctx, address, e)
	}

	return b.publishState(address, e, v, metrics.DirectionOSC)
}

// runHubIngress is Ingress B. It returns nil on cancellation.
func (b *Bridge) runHubIngress(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.commands:
			if err := b.HandleCommand(ctx, cmd.topic, cmd.payload); err != nil {
				b.logDrop(metrics.DirectionHub, "topic", cmd.topic, err)
			}
		}
	}
}

// HandleCommand processes one hub message. Topics that are not a registered
// command topic are ignored. Otherwise the payload is decoded for the
// entity's kind, clamped, sent to the device, and the clamped value is
// published back as state.
func (b *Bridge) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	b.stats.hubReceived.Add(1)
	b.metrics.MessageReceived(metrics.DirectionHub)

	address, e, ok := b.registry.FindByCommandTopic(topic)
	if !ok {
		b.metrics.MessageDropped(metrics.DirectionHub, reasonUnrouted)
		return nil
	}

	v, err := entity.DecodeAs(string(payload), e.ValueKind)
	if err != nil {
		return err
	}
	v = entity.Clamp(v)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.sender.Send(address, v.Arg()); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	b.stats.oscSent.Add(1)
	b.metrics.OSCSent()
	b.logDebug("command forwarded", "topic", topic, "address", address, "value", v.String())

	return b.publishState(address, e, v, metrics.DirectionHub)
}

// publishState publishes v on the entity's state topic and mirrors it to
// the history sink.
func (b *Bridge) publishState(address string, e entity.Entity, v entity.Value, direction string) error {
	payload, err := entity.Encode(v)
	if err != nil {
		return err
	}

	if err := b.mqtt.Publish(e.StateTopic, []byte(payload), b.qos, b.retainState); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStatePublish, e.StateTopic, err)
	}

	b.stats.statePublished.Add(1)
	b.metrics.StatePublished(direction)
	if b.history != nil {
		b.history.WriteEntityState(address, e, v, direction)
	}
	return nil
}

// logDrop counts and logs a message that was not forwarded. Bad input is
// logged at warn, failed I/O at error.
func (b *Bridge) logDrop(direction, key, value string, err error) {
	reason := dropReason(err)
	b.drop(direction, reason)

	switch reason {
	case reasonSend, reasonPublish, reasonDiscovery:
		b.logError("message not forwarded", key, value, "reason", reason, "error", err)
	default:
		b.logWarn("message dropped", key, value, "reason", reason, "error", err)
	}
}

func (b *Bridge) drop(direction, reason string) {
	b.stats.dropped.Add(1)
	b.metrics.MessageDropped(direction, reason)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrNoArguments):
		return reasonNoArguments
	case errors.Is(err, entity.ErrUnsupportedValueKind):
		return reasonUnsupportedKind
	case errors.Is(err, entity.ErrInvalidAddress):
		return reasonInvalidAddress
	case errors.Is(err, entity.ErrKindMismatch):
		return reasonKindMismatch
	case errors.Is(err, entity.ErrNameConflict):
		return reasonNameConflict
	case errors.Is(err, entity.ErrParse):
		return reasonParse
	case errors.Is(err, entity.ErrPublishFailed):
		return reasonDiscovery
	case errors.Is(err, ErrSendFailed):
		return reasonSend
	case errors.Is(err, ErrStatePublish):
		return reasonPublish
	default:
		return reasonOther
	}
}
