package ledger

import (
	"sync"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// MemoryStore is an in-memory ledger used by tests and by one-shot commands
// that must not contend with a running daemon's status file.
type MemoryStore struct {
	mu    sync.Mutex
	flags map[Kind]map[domain.Source]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: map[Kind]map[domain.Source]bool{}}
}

func (s *MemoryStore) Get(kind Kind, source domain.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[kind][source]
}

func (s *MemoryStore) Set(kind Kind, source domain.Source, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[kind] == nil {
		s.flags[kind] = map[domain.Source]bool{}
	}
	s.flags[kind][source] = active
	return nil
}

func (s *MemoryStore) AnyActive(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, active := range s.flags[kind] {
		if active {
			return true
		}
	}
	return false
}
