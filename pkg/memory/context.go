package memory

import "strings"

// --- Memory methods for Context (situational key-value storage) ---

// SetContext stores a situational fact and auto-saves.
// Examples: SetContext("owner_name", "Maya"), SetContext("home_city", "Lisbon")
func (m *Memory) SetContext(key, value string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	m.mu.Lock()
	m.Context[key] = value
	m.mu.Unlock()

	m.Save()
}

// GetContext retrieves a situational fact.
// Returns the value and whether it was found.
func (m *Memory) GetContext(key string) (string, bool) {
	key = strings.TrimSpace(key)

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.Context[key]
	return value, ok
}

// DeleteContext removes a situational fact and auto-saves.
func (m *Memory) DeleteContext(key string) bool {
	key = strings.TrimSpace(key)

	m.mu.Lock()
	_, exists := m.Context[key]
	if exists {
		delete(m.Context, key)
	}
	m.mu.Unlock()

	if exists {
		m.Save()
	}
	return exists
}

// GetAllContext returns a copy of all context key-value pairs.
func (m *Memory) GetAllContext() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.Context))
	for k, v := range m.Context {
		result[k] = v
	}
	return result
}
