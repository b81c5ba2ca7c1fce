package enrich

import "sync"

// ResultStore maps person IDs to attributes, safe for concurrent use.
// Entries are only ever added.
type ResultStore struct {
	mu      sync.Mutex
	entries map[int64]int
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{entries: make(map[int64]int)}
}

// Put records the attribute for id. If id is already present the existing
// value is kept and Put returns false.
func (s *ResultStore) Put(id int64, attribute int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return false
	}
	s.entries[id] = attribute
	return true
}

// Snapshot returns a copy of all entries.
func (s *ResultStore) Snapshot() map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]int, len(s.entries))
	for id, attribute := range s.entries {
		out[id] = attribute
	}
	return out
}

// Len returns the number of entries.
func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
