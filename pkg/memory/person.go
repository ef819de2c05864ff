package memory

import (
	"sort"
	"strings"
)

// --- Memory methods for People (facts about individuals) ---

// RememberPerson stores a fact about a person and auto-saves.
// Names are normalized to lowercase so "Maya" and "maya" are one person.
func (m *Memory) RememberPerson(name, fact string) {
	name = strings.ToLower(strings.TrimSpace(name))
	fact = strings.TrimSpace(fact)
	if name == "" || fact == "" {
		return
	}

	m.mu.Lock()
	m.People[name] = append(m.People[name], fact)
	m.mu.Unlock()

	m.Save()
}

// RecallPerson retrieves facts about a person. An exact name match wins;
// otherwise the first partial match is returned, so "maya" still recalls
// "maya chen". Returns nil when nobody matches.
func (m *Memory) RecallPerson(name string) []string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if facts, ok := m.People[name]; ok {
		return facts
	}
	for known, facts := range m.People {
		if strings.Contains(known, name) {
			return facts
		}
	}
	return nil
}

// GetAllPeople returns the names of all known people, sorted.
func (m *Memory) GetAllPeople() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.People))
	for name := range m.People {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForgetPerson removes a person from memory and auto-saves.
func (m *Memory) ForgetPerson(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	m.mu.Lock()
	_, exists := m.People[name]
	if exists {
		delete(m.People, name)
	}
	m.mu.Unlock()

	if exists {
		m.Save()
	}
	return exists
}
