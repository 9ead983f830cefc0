// Package history abstracts session history so the engine's final step can
// be swapped out in tests or bound to another host mechanism.
package history

import "sync"

// State is the metadata pushed with each entry. Reflinks is true for
// entries created by the engine, so back/forward handling can tell them apart.
type State struct {
	Reflinks bool   `json:"reflinks"`
	Action   string `json:"action,omitempty"`
	VisitID  string `json:"visit_id,omitempty"`
}

// History records forward navigations.
type History interface {
	Push(state State, title, path string)
}

// Entry is one pushed navigation.
type Entry struct {
	State State  `json:"state"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Memory is an in-process history stack.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty stack.
func NewMemory() *Memory { return &Memory{} }

// Push appends an entry.
func (m *Memory) Push(state State, title, path string) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{State: state, Title: title, Path: path})
	m.mu.Unlock()
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Latest returns the most recent entry.
func (m *Memory) Latest() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// Back pops the most recent entry.
func (m *Memory) Back() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	last := m.entries[len(m.entries)-1]
	m.entries = m.entries[:len(m.entries)-1]
	return last, true
}

// Entries returns a copy of the stack, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
