// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrEmptyIdentity is returned when registering a decoder whose
	// Identity is empty.
	ErrEmptyIdentity = errors.New("decoder: empty identity")

	// ErrDuplicateIdentity is returned when an identity is registered
	// twice.
	ErrDuplicateIdentity = errors.New("decoder: identity already registered")

	// ErrUnknownIdentity is returned when binding a data ID to an
	// identity nobody registered.
	ErrUnknownIdentity = errors.New("decoder: unknown identity")
)

// Registry maps identities to decoders and data IDs to the decoder
// bound to them. Data IDs are resolved to a decoder once, at Bind
// time, so per-record dispatch is a single map lookup. Safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]Decoder
	byDataID   map[uint32]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]Decoder),
		byDataID:   make(map[uint32]Decoder),
	}
}

// Default returns a registry holding every built-in decoder.
func Default() *Registry {
	registry := NewRegistry()
	for _, decoder := range []Decoder{KatrinFLTEnergy{}} {
		if err := registry.Register(decoder); err != nil {
			panic("decoder: built-in registration failed: " + err.Error())
		}
	}
	return registry
}

// Register adds decoder under its Identity.
func (r *Registry) Register(decoder Decoder) error {
	identity := decoder.Identity()
	if identity == "" {
		return ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byIdentity[identity]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, identity)
	}
	r.byIdentity[identity] = decoder
	return nil
}

// Lookup returns the decoder registered under identity.
func (r *Registry) Lookup(identity string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decoder, ok := r.byIdentity[identity]
	return decoder, ok
}

// Identities returns every registered identity, sorted.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identities := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}

// Bind routes records carrying dataID to the decoder registered under
// identity. Rebinding a data ID replaces the previous binding.
func (r *Registry) Bind(dataID uint32, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	decoder, ok := r.byIdentity[identity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	r.byDataID[dataID] = decoder
	return nil
}

// ForDataID returns the decoder bound to dataID.
func (r *Registry) ForDataID(dataID uint32) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	decoder, ok := r.byDataID[dataID]
	return decoder, ok
}

// ForRecord returns the decoder bound to the data ID in record's
// header.
func (r *Registry) ForRecord(record []uint32) (Decoder, bool) {
	return r.ForDataID(Basic{}.DataIDOf(record))
}
