// Package memory provides persistent knowledge storage for the assistant.
//
// Memory is organized into two categories:
//   - Context: situational key-value facts ("owner_name" -> "Maya")
//   - People: facts about individuals, keyed by lowercase name
//
// Persistence is delegated to a Store backend; without one, memory is
// process-local and vanishes on exit.
package memory

import (
	"encoding/json"
	"sync"
)

// Memory is the assistant's long-term knowledge store.
// All data persists to the configured Store backend.
type Memory struct {
	// Context stores situational key-value facts.
	// Examples: "owner_name", "home_city", "preferred_temperature"
	Context map[string]string `json:"context"`

	// People stores remembered facts about individuals.
	// Keyed by lowercase name.
	People map[string][]string `json:"people"`

	// store is the persistence backend (not serialized)
	store Store

	// mu protects concurrent access
	mu sync.RWMutex
}

// New creates a new in-memory store (no persistence).
func New() *Memory {
	return &Memory{
		Context: make(map[string]string),
		People:  make(map[string][]string),
	}
}

// NewWithStore creates a memory with a custom storage backend and
// loads whatever the backend already holds.
func NewWithStore(store Store) *Memory {
	m := New()
	m.store = store
	m.Load()
	return m
}

// NewWithFile creates a memory that persists to a JSON file.
// This is a convenience wrapper around NewWithStore.
func NewWithFile(path string) *Memory {
	return NewWithStore(NewJSONStore(path))
}

// Save persists memory to the configured store.
func (m *Memory) Save() error {
	if m.store == nil {
		return nil
	}

	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		return err
	}

	return m.store.Save(data)
}

// Load reads memory from the configured store.
func (m *Memory) Load() error {
	if m.store == nil {
		return nil
	}

	data, err := m.store.Load()
	if err != nil {
		return err
	}

	if data == nil {
		return nil // No data yet
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Unmarshal into a temporary struct to preserve existing maps
	var loaded Memory
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	// Merge loaded data (don't overwrite if nil)
	if loaded.Context != nil {
		m.Context = loaded.Context
	}
	if loaded.People != nil {
		m.People = loaded.People
	}

	return nil
}

// Close releases resources held by the store.
func (m *Memory) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

// Clear resets all memory to empty state.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Context = make(map[string]string)
	m.People = make(map[string][]string)
}

// Stats returns counts of items in each category.
func (m *Memory) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	facts := 0
	for _, f := range m.People {
		facts += len(f)
	}

	return map[string]int{
		"context": len(m.Context),
		"people":  len(m.People),
		"facts":   facts,
	}
}
