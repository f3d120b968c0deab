package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps OSC addresses to entities and back.
//
// Each address is registered at most once for the lifetime of the process.
// Registration (check, derive, publish discovery, insert) runs under the
// write lock, so two first-sight messages for one address produce a single
// discovery publish. Lookups share the lock in read mode.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	factory   *Factory
	publisher Publisher

	mu             sync.RWMutex
	byAddress      map[string]Entity
	byCommandTopic map[string]string // command topic -> address
	byName         map[string]string // entity name -> address
}

// NewRegistry creates an empty registry.
func NewRegistry(factory *Factory, publisher Publisher) *Registry {
	if factory == nil {
		factory = &Factory{}
	}
	return &Registry{
		factory:        factory,
		publisher:      publisher,
		byAddress:      make(map[string]Entity),
		byCommandTopic: make(map[string]string),
		byName:         make(map[string]string),
	}
}

// GetOrRegister returns the entity for address, registering it on first sight.
//
// The boolean result is true only for the call that created the entity.
// A sample whose kind differs from the registered entity's returns the
// existing entity together with ErrKindMismatch. If the discovery publish
// fails nothing is inserted and a later call retries.
func (r *Registry) GetOrRegister(ctx context.Context, address string, sample Value) (Entity, bool, error) {
	r.mu.RLock()
	e, ok := r.byAddress[address]
	r.mu.RUnlock()
	if ok {
		return e, false, checkKind(address, e, sample)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have registered it between the locks.
	if e, ok := r.byAddress[address]; ok {
		return e, false, checkKind(address, e, sample)
	}

	e, err := r.factory.Derive(address, sample)
	if err != nil {
		return Entity{}, false, err
	}

	if other, taken := r.byName[e.Name]; taken {
		return Entity{}, false, fmt.Errorf("%w: %s already used by %s", ErrNameConflict, e.Name, other)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, e); err != nil {
			return Entity{}, false, err
		}
	}

	r.byAddress[address] = e
	r.byCommandTopic[e.CommandTopic] = address
	r.byName[e.Name] = address

	return e, true, nil
}

func checkKind(address string, e Entity, sample Value) error {
	if sample.Kind() != e.ValueKind {
		return fmt.Errorf("%w: %s registered as %s, got %s", ErrKindMismatch, address, e.ValueKind, sample.Kind())
	}
	return nil
}

// Lookup returns the entity registered for address.
func (r *Registry) Lookup(address string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byAddress[address]
	return e, ok
}

// Contains reports whether address has been registered.
func (r *Registry) Contains(address string) bool {
	_, ok := r.Lookup(address)
	return ok
}

// FindByCommandTopic returns the address and entity whose command topic is topic.
func (r *Registry) FindByCommandTopic(topic string) (string, Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address, ok := r.byCommandTopic[topic]
	if !ok {
		return "", Entity{}, false
	}
	return address, r.byAddress[address], true
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}

// Entities returns a snapshot of every mapping, sorted by address.
func (r *Registry) Entities() []Mapping {
	r.mu.RLock()
	out := make([]Mapping, 0, len(r.byAddress))
	for address, e := range r.byAddress {
		out = append(out, Mapping{Address: address, Kind: e.ValueKind.String(), Entity: e})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
