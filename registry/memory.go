package registry

import "sync"

// MemoryStore keeps the registry in memory. It backs tests and acts as a
// throwaway registry for callers that opt out of cross-process coordination
// but still want tracker bookkeeping.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry

	// ReadErr and WriteErr, when set, are returned by the corresponding
	// operations. Tests use them to exercise degraded registry behavior.
	ReadErr  error
	WriteErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns a copy of the stored entries.
func (s *MemoryStore) Read() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Write replaces the stored entries, sorted by (pid, site).
func (s *MemoryStore) Write(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	SortEntries(entries)
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
