package entity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingPublisher counts discovery publishes and can be told to fail.
type countingPublisher struct {
	calls atomic.Int32
	delay time.Duration

	mu  sync.Mutex
	err error
}

func (p *countingPublisher) Publish(_ context.Context, _ Entity) error {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *countingPublisher) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func newTestRegistry() (*Registry, *countingPublisher) {
	pub := &countingPublisher{}
	return NewRegistry(NewFactory("homeassistant"), pub), pub
}

// ============================================================================
// Registration
// ============================================================================

func TestGetOrRegisterOnce(t *testing.T) {
	r, pub := newTestRegistry()
	ctx := context.Background()

	first, created, err := r.GetOrRegister(ctx, "/avatar/parameters/Volume", FloatValue(0.5))
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}
	if !created {
		t.Error("first call should create the entity")
	}

	second, created, err := r.GetOrRegister(ctx, "/avatar/parameters/Volume", FloatValue(-0.5))
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}
	if created {
		t.Error("second call should not create the entity")
	}
	if first != second {
		t.Errorf("entities differ:\n%+v\n%+v", first, second)
	}
	if got := pub.calls.Load(); got != 1 {
		t.Errorf("discovery published %d times, want 1", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestGetOrRegisterConcurrent(t *testing.T) {
	r, pub := newTestRegistry()
	pub.delay = 5 * time.Millisecond

	const workers = 32
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		start   = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, isNew, err := r.GetOrRegister(context.Background(), "/avatar/parameters/Grab", BoolValue(true))
			if err != nil {
				t.Errorf("GetOrRegister() error = %v", err)
				return
			}
			if isNew {
				created.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := pub.calls.Load(); got != 1 {
		t.Errorf("discovery published %d times, want 1", got)
	}
	if got := created.Load(); got != 1 {
		t.Errorf("%d callers saw created=true, want 1", got)
	}
}

func TestGetOrRegisterKindMismatch(t *testing.T) {
	r, pub := newTestRegistry()
	ctx := context.Background()

	orig, _, err := r.GetOrRegister(ctx, "/p/Gesture", IntValue(3))
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	got, created, err := r.GetOrRegister(ctx, "/p/Gesture", FloatValue(0.3))
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("error = %v, want ErrKindMismatch", err)
	}
	if created {
		t.Error("mismatch must not create")
	}
	if got != orig || got.ValueKind != KindInt {
		t.Errorf("entity was re-typed: %+v", got)
	}
	if pub.calls.Load() != 1 {
		t.Errorf("discovery published %d times, want 1", pub.calls.Load())
	}
}

func TestGetOrRegisterNameConflict(t *testing.T) {
	r, pub := newTestRegistry()
	ctx := context.Background()

	if _, _, err := r.GetOrRegister(ctx, "/left/Hand", BoolValue(true)); err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	_, _, err := r.GetOrRegister(ctx, "/right/Hand", BoolValue(true))
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("error = %v, want ErrNameConflict", err)
	}
	if r.Contains("/right/Hand") {
		t.Error("conflicting address should not be registered")
	}
	if pub.calls.Load() != 1 {
		t.Errorf("discovery published %d times, want 1", pub.calls.Load())
	}
}

func TestGetOrRegisterPublishFailure(t *testing.T) {
	r, pub := newTestRegistry()
	ctx := context.Background()
	pub.setErr(ErrPublishFailed)

	if _, _, err := r.GetOrRegister(ctx, "/p/Jump", BoolValue(true)); !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
	if r.Contains("/p/Jump") {
		t.Fatal("address inserted despite failed discovery")
	}

	pub.setErr(nil)
	_, created, err := r.GetOrRegister(ctx, "/p/Jump", BoolValue(true))
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if !created {
		t.Error("retry should create the entity")
	}
	if pub.calls.Load() != 2 {
		t.Errorf("discovery attempted %d times, want 2", pub.calls.Load())
	}
}

func TestGetOrRegisterInvalid(t *testing.T) {
	r, pub := newTestRegistry()

	if _, _, err := r.GetOrRegister(context.Background(), "/", BoolValue(true)); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("error = %v, want ErrInvalidAddress", err)
	}
	if _, _, err := r.GetOrRegister(context.Background(), "/x", Value{}); !errors.Is(err, ErrUnsupportedValueKind) {
		t.Errorf("error = %v, want ErrUnsupportedValueKind", err)
	}
	if pub.calls.Load() != 0 {
		t.Errorf("discovery published %d times, want 0", pub.calls.Load())
	}
}

// ============================================================================
// Lookups
// ============================================================================

func TestFindByCommandTopic(t *testing.T) {
	r, _ := newTestRegistry()
	e, _, err := r.GetOrRegister(context.Background(), "/avatar/parameters/isWristVisible", BoolValue(false))
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	address, found, ok := r.FindByCommandTopic("homeassistant/switch/OscisWristVisible/set")
	if !ok {
		t.Fatal("command topic not found")
	}
	if address != "/avatar/parameters/isWristVisible" {
		t.Errorf("address = %q", address)
	}
	if found != e {
		t.Errorf("entity = %+v, want %+v", found, e)
	}

	for _, topic := range []string{
		"homeassistant/switch/OscisWristVisible/state",
		"homeassistant/switch/OscisWristVisible/config",
		"homeassistant/status",
	} {
		if _, _, ok := r.FindByCommandTopic(topic); ok {
			t.Errorf("FindByCommandTopic(%q) matched", topic)
		}
	}
}

func TestLookupAndEntities(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	for _, addr := range []string{"/c/Three", "/a/One", "/b/Two"} {
		if _, _, err := r.GetOrRegister(ctx, addr, IntValue(1)); err != nil {
			t.Fatalf("GetOrRegister(%q) error = %v", addr, err)
		}
	}

	if _, ok := r.Lookup("/a/One"); !ok {
		t.Error("Lookup(/a/One) not found")
	}
	if _, ok := r.Lookup("/missing"); ok {
		t.Error("Lookup(/missing) found")
	}

	got := r.Entities()
	want := []string{"/a/One", "/b/Two", "/c/Three"}
	if len(got) != len(want) {
		t.Fatalf("Entities() len = %d, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Address != want[i] {
			t.Errorf("Entities()[%d].Address = %q, want %q", i, m.Address, want[i])
		}
		if m.Kind != "int" {
			t.Errorf("Entities()[%d].Kind = %q, want int", i, m.Kind)
		}
	}
}

func TestRegistryConcurrentReadWrite(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _, _ = r.GetOrRegister(ctx, "/p/Shared", FloatValue(0))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if addr, e, ok := r.FindByCommandTopic("homeassistant/number/OscShared/set"); ok {
					if addr != "/p/Shared" || e.Name != "OscShared" {
						t.Errorf("torn read: %q %+v", addr, e)
					}
				}
				_ = r.Entities()
			}
		}()
	}
	wg.Wait()
}
