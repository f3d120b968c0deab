package osc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	gosc "github.com/hypebeast/go-osc/osc"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/osc-bridge/internal/entity"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/osc-bridge/internal/metrics"
)

// commandBuffer is how many hub commands may wait for Ingress B before the
// MQTT handler blocks.
const commandBuffer = 256

// Receiver yields OSC messages. Implemented by the osc infrastructure Listener.
type Receiver interface {
	Receive(ctx context.Context) ([]*gosc.Message, error)
}

// Sender sends OSC messages to the device.
type Sender interface {
	Send(address string, args ...any) error
}

// MQTTClient is the subset of the MQTT client used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// StateHistory mirrors published state values. Optional.
type StateHistory interface {
	WriteEntityState(address string, e entity.Entity, v entity.Value, direction string)
}

// RegistrationRecorder is told about every newly registered entity. Optional.
type RegistrationRecorder interface {
	EntityRegistered(ctx context.Context, address string, e entity.Entity) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// StaticEntity is an entity registered at startup instead of on first sight.
type StaticEntity struct {
	Address string
	Kind    entity.ValueKind
}

// Options holds the bridge's collaborators.
type Options struct {
	// Registry, MQTT, Receiver and Sender are required.
	Registry *entity.Registry
	MQTT     MQTTClient
	Receiver Receiver
	Sender   Sender

	// CommandTopic is the subscription carrying hub commands,
	// normally "<namespace>/#".
	CommandTopic string

	// QoS and RetainState apply to state publications.
	QoS         byte
	RetainState bool

	// Static entities are registered by Preload.
	Static []StaticEntity

	Logger   Logger
	Metrics  *metrics.Metrics
	History  StateHistory
	Recorder RegistrationRecorder
}

type command struct {
	topic   string
	payload []byte
}

// Bridge translates between OSC messages and hub entities.
//
// Run may be called once.
type Bridge struct {
	registry *entity.Registry
	mqtt     MQTTClient
	receiver Receiver
	sender   Sender

	commandTopic string
	qos          byte
	retainState  bool
	static       []StaticEntity

	logger   Logger
	metrics  *metrics.Metrics
	history  StateHistory
	recorder RegistrationRecorder

	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	stats counters
}

type counters struct {
	oscReceived    atomic.Uint64
	hubReceived    atomic.Uint64
	statePublished atomic.Uint64
	oscSent        atomic.Uint64
	dropped        atomic.Uint64
	registered     atomic.Uint64
}

// Stats is a snapshot of the bridge counters.
type Stats struct {
	OSCReceived    uint64 `json:"osc_received"`
	HubReceived    uint64 `json:"hub_received"`
	StatePublished uint64 `json:"state_published"`
	OSCSent        uint64 `json:"osc_sent"`
	Dropped        uint64 `json:"dropped"`
	Registered     uint64 `json:"registered"`
	Entities       int    `json:"entities"`
}

// New creates a bridge. Call Preload then Run.
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.Registry == nil:
		return nil, fmt.Errorf("registry is required")
	case opts.MQTT == nil:
		return nil, fmt.Errorf("MQTT client is required")
	case opts.Receiver == nil:
		return nil, fmt.Errorf("OSC receiver is required")
	case opts.Sender == nil:
		return nil, fmt.Errorf("OSC sender is required")
	case opts.CommandTopic == "":
		return nil, fmt.Errorf("command topic is required")
	}

	return &Bridge{
		registry:     opts.Registry,
		mqtt:         opts.MQTT,
		receiver:     opts.Receiver,
		sender:       opts.Sender,
		commandTopic: opts.CommandTopic,
		qos:          opts.QoS,
		retainState:  opts.RetainState,
		static:       opts.Static,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		history:      opts.History,
		recorder:     opts.Recorder,
		commands:     make(chan command, commandBuffer),
		done:         make(chan struct{}),
	}, nil
}

// Preload registers the static entity table through the same path as
// first-sight registration, using the zero value of each declared kind.
// Every entry is attempted; the failures are returned joined.
func (b *Bridge) Preload(ctx context.Context) error {
	var errs []error
	for _, s := range b.static {
		sample, err := entity.ZeroValue(s.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("static entity %s: %w", s.Address, err))
			continue
		}

		e, created, err := b.registry.GetOrRegister(ctx, s.Address, sample)
		if err != nil {
			b.logWarn("static entity rejected", "address", s.Address, "error", err)
			errs = append(errs, fmt.Errorf("static entity %s: %w", s.Address, err))
			continue
		}
		if created {
			b.onRegistered(ctx, s.Address, e)
		}
	}
	return errors.Join(errs...)
}

// Run subscribes to hub commands and runs both pumps until ctx is cancelled
// or the OSC transport fails. A cancelled ctx returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.stopOnce.Do(func() { close(b.done) })

	if err := b.mqtt.Subscribe(b.commandTopic, b.qos, b.enqueueCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.commandTopic, err)
	}
	defer func() {
		if err := b.mqtt.Unsubscribe(b.commandTopic); err != nil {
			b.logDebug("unsubscribe failed", "topic", b.commandTopic, "error", err)
		}
	}()

	b.logInfo("bridge running", "command_topic", b.commandTopic, "entities", b.registry.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.runOSCIngress(gctx) })
	g.Go(func() error { return b.runHubIngress(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

// enqueueCommand is the MQTT handler. Only command-shaped topics are queued;
// the namespace wildcard also carries state and discovery traffic. It copies
// the payload and blocks until Ingress B has room or the bridge stops.
func (b *Bridge) enqueueCommand(topic string, payload []byte) error {
	if !mqtt.IsCommandTopic(topic) {
		return nil
	}
	cmd := command{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case b.commands <- cmd:
		return nil
	case <-b.done:
		return context.Canceled
	}
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		OSCReceived:    b.stats.oscReceived.Load(),
		HubReceived:    b.stats.hubReceived.Load(),
		StatePublished: b.stats.statePublished.Load(),
		OSCSent:        b.stats.oscSent.Load(),
		Dropped:        b.stats.dropped.Load(),
		Registered:     b.stats.registered.Load(),
		Entities:       b.registry.Len(),
	}
}

// onRegistered runs the side effects of a successful first registration.
func (b *Bridge) onRegistered(ctx context.Context, address string, e entity.Entity) {
	b.stats.registered.Add(1)
	b.metrics.EntityRegistered(b.registry.Len())
	b.logInfo("entity registered",
		"address", address,
		"name", e.Name,
		"component", string(e.Component),
		"kind", e.ValueKind.String(),
	)

	if b.recorder != nil {
		if err := b.recorder.EntityRegistered(ctx, address, e); err != nil {
			b.logError("audit record failed", "address", address, "error", err)
		}
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Error(msg, keysAndValues...)
	}
}
