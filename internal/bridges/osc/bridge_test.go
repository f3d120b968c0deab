package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	gosc "github.com/hypebeast/go-osc/osc"

	"github.com/nerrad567/osc-bridge/internal/entity"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/config"
	"github.com/nerrad567/osc-bridge/internal/infrastructure/mqtt"
	osctransport "github.com/nerrad567/osc-bridge/internal/infrastructure/osc"
	"github.com/nerrad567/osc-bridge/internal/metrics"
)

// mockMQTT implements MQTTClient and entity.MQTTPublisher.
type mockMQTT struct {
	mu           sync.Mutex
	published    []mockPublish
	handler      mqtt.MessageHandler
	subscribed   chan string
	unsubscribed []string
	failPrefix   string
}

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{subscribed: make(chan string, 1)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPrefix != "" && strings.HasPrefix(topic, m.failPrefix) {
		return errors.New("broker unavailable")
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: string(payload), QoS: qos, Retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	m.subscribed <- topic
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTT) deliver(topic, payload string) error {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	return h(topic, []byte(payload))
}

// onTopic returns the payloads published to topic, in order.
func (m *mockMQTT) onTopic(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

func (m *mockMQTT) setFailPrefix(prefix string) {
	m.mu.Lock()
	m.failPrefix = prefix
	m.mu.Unlock()
}

type received struct {
	msgs []*gosc.Message
	err  error
}

// mockReceiver replays queued results, then blocks until ctx is done.
type mockReceiver struct {
	ch chan received
}

func newMockReceiver() *mockReceiver {
	return &mockReceiver{ch: make(chan received, 16)}
}

func (r *mockReceiver) Receive(ctx context.Context) ([]*gosc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item := <-r.ch:
		return item.msgs, item.err
	}
}

type sent struct {
	Address string
	Arg     any
}

type mockSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
	got  chan sent
}

func newMockSender() *mockSender {
	return &mockSender{got: make(chan sent, 16)}
}

func (s *mockSender) Send(address string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	rec := sent{Address: address, Arg: args[0]}
	s.sent = append(s.sent, rec)
	select {
	case s.got <- rec:
	default:
	}
	return nil
}

func (s *mockSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type historyEntry struct {
	address   string
	value     entity.Value
	direction string
}

type mockHistory struct {
	mu      sync.Mutex
	entries []historyEntry
}

func (h *mockHistory) WriteEntityState(address string, _ entity.Entity, v entity.Value, direction string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, historyEntry{address, v, direction})
}

type mockRecorder struct {
	mu        sync.Mutex
	addresses []string
}

func (r *mockRecorder) EntityRegistered(_ context.Context, address string, _ entity.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses = append(r.addresses, address)
	return nil
}

type fixture struct {
	bridge   *Bridge
	mqtt     *mockMQTT
	receiver *mockReceiver
	sender   *mockSender
	history  *mockHistory
	recorder *mockRecorder
}

func newFixture(t *testing.T, static ...StaticEntity) *fixture {
	t.Helper()

	m := newMockMQTT()
	publisher := entity.NewDiscoveryPublisher(m, entity.DiscoveryOptions{QoS: 1, Retain: true})
	f := &fixture{
		mqtt:     m,
		receiver: newMockReceiver(),
		sender:   newMockSender(),
		history:  &mockHistory{},
		recorder: &mockRecorder{},
	}

	b, err := New(Options{
		Registry:     entity.NewRegistry(entity.NewFactory(""), publisher),
		MQTT:         m,
		Receiver:     f.receiver,
		Sender:       f.sender,
		CommandTopic: "homeassistant/#",
		QoS:          1,
		Static:       static,
		Metrics:      metrics.New(),
		History:      f.history,
		Recorder:     f.recorder,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.bridge = b
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	reg := entity.NewRegistry(entity.NewFactory(""), nil)
	full := Options{
		Registry:     reg,
		MQTT:         newMockMQTT(),
		Receiver:     newMockReceiver(),
		Sender:       newMockSender(),
		CommandTopic: "homeassistant/#",
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"registry", func(o *Options) { o.Registry = nil }},
		{"mqtt", func(o *Options) { o.MQTT = nil }},
		{"receiver", func(o *Options) { o.Receiver = nil }},
		{"sender", func(o *Options) { o.Sender = nil }},
		{"command topic", func(o *Options) { o.CommandTopic = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := full
			tt.mutate(&opts)
			if _, err := New(opts); err == nil {
				t.Error("New() should fail")
			}
		})
	}

	if _, err := New(full); err != nil {
		t.Errorf("New() with all collaborators error = %v", err)
	}
}

func TestScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const configTopic = "homeassistant/switch/Oscx/config"
	const stateTopic = "homeassistant/switch/Oscx/state"

	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true}); err != nil {
		t.Fatalf("first message error = %v", err)
	}
	if got := f.mqtt.onTopic(configTopic); len(got) != 1 {
		t.Fatalf("discovery publishes = %d, want 1", len(got))
	}
	if got := f.mqtt.onTopic(stateTopic); len(got) != 1 || got[0] != "ON" {
		t.Fatalf("state = %v, want [ON]", got)
	}

	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{false}); err != nil {
		t.Fatalf("second message error = %v", err)
	}
	if got := f.mqtt.onTopic(configTopic); len(got) != 1 {
		t.Errorf("discovery publishes after second message = %d, want 1", len(got))
	}
	if got := f.mqtt.onTopic(stateTopic); len(got) != 2 || got[1] != "OFF" {
		t.Errorf("state = %v, want [ON OFF]", got)
	}

	// Numeric entity, then a hub command that is already in range.
	if err := f.bridge.HandleOSCMessage(ctx, "/p/level", []any{int32(10)}); err != nil {
		t.Fatalf("int message error = %v", err)
	}
	if err := f.bridge.HandleCommand(ctx, "homeassistant/number/Osclevel/set", []byte("127")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	sends := f.sender.all()
	if len(sends) != 1 || sends[0].Address != "/p/level" || sends[0].Arg != int32(127) {
		t.Errorf("sent = %+v, want /p/level int32(127)", sends)
	}
	if got := f.mqtt.onTopic("homeassistant/number/Osclevel/state"); len(got) != 2 || got[1] != "127" {
		t.Errorf("number state = %v, want [10 127]", got)
	}

	stats := f.bridge.Stats()
	if stats.Registered != 2 || stats.Entities != 2 || stats.OSCSent != 1 || stats.StatePublished != 4 {
		t.Errorf("Stats() = %+v", stats)
	}
	if len(f.recorder.addresses) != 2 {
		t.Errorf("recorder calls = %v, want 2 addresses", f.recorder.addresses)
	}
}

func TestHandleCommand_ClampsBeforeSendAndEcho(t *testing.T) {
	tests := []struct {
		name      string
		address   string
		sample    any
		payload   string
		wantArg   any
		wantState string
	}{
		{"int above range", "/c/a", int32(1), "300", int32(255), "255"},
		{"int below range", "/c/b", int32(1), "-5", int32(0), "0"},
		{"int rounds", "/c/c", int32(1), "127.6", int32(128), "128"},
		{"float above range", "/c/d", float32(0), "2.5", float32(1), "1"},
		{"float in range", "/c/e", float32(0), "-0.25", float32(-0.25), "-0.25"},
		{"switch on", "/c/f", false, "ON", true, "ON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			if err := f.bridge.HandleOSCMessage(ctx, tt.address, []any{tt.sample}); err != nil {
				t.Fatalf("register error = %v", err)
			}
			e, ok := f.bridge.registry.Lookup(tt.address)
			if !ok {
				t.Fatal("entity not registered")
			}

			if err := f.bridge.HandleCommand(ctx, e.CommandTopic, []byte(tt.payload)); err != nil {
				t.Fatalf("HandleCommand() error = %v", err)
			}

			sends := f.sender.all()
			if len(sends) != 1 || sends[0].Arg != tt.wantArg {
				t.Errorf("sent = %+v, want arg %#v", sends, tt.wantArg)
			}
			states := f.mqtt.onTopic(e.StateTopic)
			if len(states) != 2 || states[1] != tt.wantState {
				t.Errorf("state = %v, want echo %q", states, tt.wantState)
			}

			h := f.history.entries
			if last := h[len(h)-1]; last.direction != metrics.DirectionHub || last.address != tt.address {
				t.Errorf("history = %+v", last)
			}
		})
	}
}

func TestHandleCommand_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true}); err != nil {
		t.Fatal(err)
	}
	if err := f.bridge.HandleOSCMessage(ctx, "/p/level", []any{int32(1)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"unrouted topic", "homeassistant/switch/Other/set", "ON", nil},
		{"state topic is not a command", "homeassistant/switch/Oscx/state", "ON", nil},
		{"discovery config", "homeassistant/switch/Oscx/config", "{}", nil},
		{"unparseable", "homeassistant/number/Osclevel/set", "loud", entity.ErrParse},
		{"number for switch", "homeassistant/switch/Oscx/set", "50", entity.ErrKindMismatch},
		{"ON for number", "homeassistant/number/Osclevel/set", "ON", entity.ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.bridge.HandleCommand(ctx, tt.topic, []byte(tt.payload))
			if tt.wantErr == nil && err != nil {
				t.Errorf("HandleCommand() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("HandleCommand() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(f.sender.all()); n != 0 {
				t.Errorf("sent %d messages, want none", n)
			}
		})
	}
}

func TestHandleCommand_SendFailureSkipsEcho(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true}); err != nil {
		t.Fatal(err)
	}
	f.sender.err = errors.New("network unreachable")

	err := f.bridge.HandleCommand(ctx, "homeassistant/switch/Oscx/set", []byte("OFF"))
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("HandleCommand() error = %v, want ErrSendFailed", err)
	}
	if dropReason(err) != reasonSend {
		t.Errorf("dropReason = %q", dropReason(err))
	}
	if got := f.mqtt.onTopic("homeassistant/switch/Oscx/state"); len(got) != 1 {
		t.Errorf("state publishes = %v, want only the original ON", got)
	}
}

func TestHandleOSCMessage_Drops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		address string
		args    []any
		wantErr error
		reason  string
	}{
		{"no arguments", "/p/y", nil, ErrNoArguments, reasonNoArguments},
		{"string argument", "/p/y", []any{"hello"}, entity.ErrUnsupportedValueKind, reasonUnsupportedKind},
		{"int64 argument", "/p/y", []any{int64(1)}, entity.ErrUnsupportedValueKind, reasonUnsupportedKind},
		{"kind mismatch", "/p/x", []any{int32(3)}, entity.ErrKindMismatch, reasonKindMismatch},
		{"name conflict", "/q/x", []any{true}, entity.ErrNameConflict, reasonNameConflict},
		{"no segment", "/", []any{true}, entity.ErrInvalidAddress, reasonInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.bridge.HandleOSCMessage(ctx, tt.address, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleOSCMessage() error = %v, want %v", err, tt.wantErr)
			}
			if got := dropReason(err); got != tt.reason {
				t.Errorf("dropReason() = %q, want %q", got, tt.reason)
			}
		})
	}

	// Only the original registration's state was published.
	if got := f.mqtt.onTopic("homeassistant/switch/Oscx/state"); len(got) != 1 {
		t.Errorf("state publishes = %v, want 1", got)
	}
	if f.bridge.registry.Len() != 1 {
		t.Errorf("registry size = %d, want 1", f.bridge.registry.Len())
	}
}

func TestHandleOSCMessage_ExtraArgumentsIgnored(t *testing.T) {
	f := newFixture(t)

	err := f.bridge.HandleOSCMessage(context.Background(), "/p/gain", []any{float32(0.5), "ignored", int32(7)})
	if err != nil {
		t.Fatalf("HandleOSCMessage() error = %v", err)
	}
	if got := f.mqtt.onTopic("homeassistant/number/Oscgain/state"); len(got) != 1 || got[0] != "0.5" {
		t.Errorf("state = %v, want [0.5]", got)
	}
}

func TestHandleOSCMessage_DiscoveryFailureRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mqtt.setFailPrefix("homeassistant/switch/Oscx/config")
	err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true})
	if !errors.Is(err, entity.ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
	if dropReason(err) != reasonDiscovery {
		t.Errorf("dropReason = %q", dropReason(err))
	}
	if f.bridge.registry.Contains("/p/x") {
		t.Fatal("address registered despite failed discovery")
	}

	f.mqtt.setFailPrefix("")
	if err := f.bridge.HandleOSCMessage(ctx, "/p/x", []any{true}); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got := f.mqtt.onTopic("homeassistant/switch/Oscx/config"); len(got) != 1 {
		t.Errorf("discovery publishes = %d, want 1", len(got))
	}
}

func TestHandleOSCMessage_StatePublishFailure(t *testing.T) {
	f := newFixture(t)
	f.mqtt.setFailPrefix("homeassistant/switch/Oscx/state")

	err := f.bridge.HandleOSCMessage(context.Background(), "/p/x", []any{true})
	if !errors.Is(err, ErrStatePublish) {
		t.Fatalf("error = %v, want ErrStatePublish", err)
	}
	if !f.bridge.registry.Contains("/p/x") {
		t.Error("registration should survive a failed state publish")
	}
}

func TestHandleOSCMessage_ConcurrentFirstSight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if err := f.bridge.HandleOSCMessage(ctx, "/avatar/parameters/isWristVisible", []any{i%2 == 0}); err != nil {
				t.Errorf("HandleOSCMessage() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := f.mqtt.onTopic("homeassistant/switch/OscisWristVisible/config"); len(got) != 1 {
		t.Errorf("discovery publishes = %d, want 1", len(got))
	}
	if got := f.mqtt.onTopic("homeassistant/switch/OscisWristVisible/state"); len(got) != n {
		t.Errorf("state publishes = %d, want %d", len(got), n)
	}
	if s := f.bridge.Stats(); s.Registered != 1 {
		t.Errorf("Registered = %d, want 1", s.Registered)
	}
}

func TestPreload(t *testing.T) {
	f := newFixture(t,
		StaticEntity{Address: "/avatar/parameters/Mute", Kind: entity.KindBool},
		StaticEntity{Address: "/avatar/parameters/Volume", Kind: entity.KindFloat},
		StaticEntity{Address: "/other/Mute", Kind: entity.KindBool},
		StaticEntity{Address: "/avatar/parameters/Bad", Kind: entity.KindInvalid},
	)

	err := f.bridge.Preload(context.Background())
	if err == nil {
		t.Fatal("Preload() should report the conflicting and invalid entries")
	}
	if !errors.Is(err, entity.ErrNameConflict) || !errors.Is(err, entity.ErrUnsupportedValueKind) {
		t.Errorf("Preload() error = %v", err)
	}

	if f.bridge.registry.Len() != 2 {
		t.Errorf("registry size = %d, want 2", f.bridge.registry.Len())
	}
	if got := f.mqtt.onTopic("homeassistant/number/OscVolume/config"); len(got) != 1 {
		t.Errorf("discovery for Volume = %d, want 1", len(got))
	}
	if got := f.mqtt.onTopic("homeassistant/number/OscVolume/state"); len(got) != 0 {
		t.Errorf("Preload should not publish state, got %v", got)
	}

	// A preloaded entity routes commands immediately.
	if err := f.bridge.HandleCommand(context.Background(), "homeassistant/switch/OscMute/set", []byte("ON")); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	if sends := f.sender.all(); len(sends) != 1 || sends[0].Address != "/avatar/parameters/Mute" {
		t.Errorf("sent = %+v", sends)
	}
}

func TestRun_BothPumps(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bridge.Run(ctx) }()

	select {
	case topic := <-f.mqtt.subscribed:
		if topic != "homeassistant/#" {
			t.Errorf("subscribed to %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not subscribe")
	}

	bundle := []*gosc.Message{
		gosc.NewMessage("/p/level", int32(200)),
		gosc.NewMessage("/p/bad", "text"),
	}
	f.receiver.ch <- received{err: fmt.Errorf("%w: short read", osctransport.ErrMalformedPacket)}
	f.receiver.ch <- received{msgs: bundle}

	// Wait until Ingress A registered the entity, then send a command.
	deadline := time.Now().Add(2 * time.Second)
	for !f.bridge.registry.Contains("/p/level") {
		if time.Now().After(deadline) {
			t.Fatal("entity not registered by Ingress A")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := f.mqtt.deliver("homeassistant/number/Osclevel/set", "64"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}

	select {
	case s := <-f.sender.got:
		if s.Address != "/p/level" || s.Arg != int32(64) {
			t.Errorf("sent %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded by Ingress B")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if s := f.bridge.Stats(); s.Dropped < 2 {
		t.Errorf("Dropped = %d, want the string arg and the malformed packet", s.Dropped)
	}
	f.mqtt.mu.Lock()
	unsub := f.mqtt.unsubscribed
	f.mqtt.mu.Unlock()
	if len(unsub) != 1 {
		t.Errorf("unsubscribed = %v", unsub)
	}

	// The handler no longer blocks once Run has returned.
	for i := 0; i < commandBuffer+1; i++ {
		if err := f.mqtt.deliver("homeassistant/number/Osclevel/set", "1"); err != nil {
			return
		}
	}
	t.Error("handler accepted commands indefinitely after Run returned")
}

func TestRun_TransportFailure(t *testing.T) {
	f := newFixture(t)

	f.receiver.ch <- received{err: fmt.Errorf("%w: socket closed", osctransport.ErrReceiveFailed)}

	done := make(chan error, 1)
	go func() { done <- f.bridge.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrTransport) {
			t.Errorf("Run() error = %v, want ErrTransport", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on transport failure")
	}
}

type failingSubscribe struct{ *mockMQTT }

func (failingSubscribe) Subscribe(string, byte, mqtt.MessageHandler) error {
	return mqtt.ErrNotConnected
}

func TestRun_SubscribeFailure(t *testing.T) {
	f := newFixture(t)
	f.bridge.mqtt = failingSubscribe{f.mqtt}

	err := f.bridge.Run(context.Background())
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Run() error = %v, want ErrNotConnected", err)
	}
}

func TestRun_UndecodableDatagramCounted(t *testing.T) {
	f := newFixture(t)

	l, err := osctransport.Listen(config.OSCConfig{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	f.bridge.receiver = l

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bridge.Run(ctx) }()
	<-f.mqtt.subscribed

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("not an osc packet")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.bridge.Stats().Dropped == 0 {
		if time.Now().After(deadline) {
			t.Fatal("undecodable datagram was not counted as dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The listener stays usable afterwards.
	port := l.Addr().(*net.UDPAddr).Port
	sender, err := osctransport.NewSender(config.OSCConfig{TargetHost: "127.0.0.1", TargetPort: port})
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if err := sender.Send("/p/x", true); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	for !f.bridge.registry.Contains("/p/x") {
		if time.Now().After(deadline) {
			t.Fatal("message after the undecodable datagram was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	s := f.bridge.Stats()
	if s.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", s.Dropped)
	}
	if s.OSCReceived != 1 {
		t.Errorf("OSCReceived = %d, want 1", s.OSCReceived)
	}
}

func TestRun_OnlyCommandTopicsQueued(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.bridge.HandleOSCMessage(ctx, "/p/level", []any{int32(5)}); err != nil {
		t.Fatalf("HandleOSCMessage() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.bridge.Run(ctx) }()
	<-f.mqtt.subscribed

	// More state and discovery traffic than the queue holds must not block
	// the handler or reach Ingress B.
	for i := 0; i < commandBuffer+8; i++ {
		for _, topic := range []string{
			"homeassistant/number/Osclevel/state",
			"homeassistant/number/Osclevel/config",
		} {
			if err := f.mqtt.deliver(topic, "1"); err != nil {
				t.Fatalf("deliver(%s) error = %v", topic, err)
			}
		}
	}

	if err := f.mqtt.deliver("homeassistant/number/Osclevel/set", "10"); err != nil {
		t.Fatalf("deliver error = %v", err)
	}
	select {
	case s := <-f.sender.got:
		if s.Address != "/p/level" || s.Arg != int32(10) {
			t.Errorf("sent %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}

	if got := f.bridge.Stats().HubReceived; got != 1 {
		t.Errorf("HubReceived = %d, want only the command", got)
	}

	cancel()
	<-done
}
