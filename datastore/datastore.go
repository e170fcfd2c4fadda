// Package datastore provides the versioned record store backing the name
// registry. It is pure storage: entries are keyed by the owning registry's
// address and the name's canonical resource, and no authorization logic
// lives here. The registry gates every write before calling in.
package datastore

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/namechain/registry/roles"
)

// Entry is the stored record for one name under one owning registry.
// TokenVersion and EACVersion are independent counters folded into the
// externally visible token id; bumping either retires the previous id.
type Entry struct {
	Subregistry  common.Address
	Resolver     common.Address
	Expiry       uint64
	TokenVersion uint32
	EACVersion   uint32
}

// Store maps (owning registry, resource) to entries. Entries written under
// one registry address are invisible under any other: a read with a
// different owner key returns the zero Entry.
type Store struct {
	mu      sync.RWMutex
	entries map[common.Address]map[roles.Resource]Entry
}

// NewStore creates an empty datastore.
func NewStore() *Store {
	return &Store{entries: make(map[common.Address]map[roles.Resource]Entry)}
}

// Get returns the entry stored by registry for resource, or the zero Entry.
func (s *Store) Get(registry common.Address, resource roles.Resource) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if byResource, ok := s.entries[registry]; ok {
		return byResource[resource]
	}
	return Entry{}
}

// Set writes the full entry under the caller registry's own address key.
func (s *Store) Set(registry common.Address, resource roles.Resource, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byResource, ok := s.entries[registry]
	if !ok {
		byResource = make(map[roles.Resource]Entry)
		s.entries[registry] = byResource
	}
	byResource[resource] = entry
}

// SetSubregistry updates only the subregistry pointer, preserving the
// expiry and both version counters.
func (s *Store) SetSubregistry(registry common.Address, resource roles.Resource, subregistry common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.getLocked(registry, resource)
	entry.Subregistry = subregistry
	s.setLocked(registry, resource, entry)
}

// SetResolver updates only the resolver pointer, preserving the expiry and
// both version counters.
func (s *Store) SetResolver(registry common.Address, resource roles.Resource, resolver common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.getLocked(registry, resource)
	entry.Resolver = resolver
	s.setLocked(registry, resource, entry)
}

func (s *Store) getLocked(registry common.Address, resource roles.Resource) Entry {
	if byResource, ok := s.entries[registry]; ok {
		return byResource[resource]
	}
	return Entry{}
}

func (s *Store) setLocked(registry common.Address, resource roles.Resource, entry Entry) {
	byResource, ok := s.entries[registry]
	if !ok {
		byResource = make(map[roles.Resource]Entry)
		s.entries[registry] = byResource
	}
	byResource[resource] = entry
}
