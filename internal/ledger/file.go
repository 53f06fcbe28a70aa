package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// FileName is the ledger document name, kept identical to earlier
// deployments so operators can inspect and reset flags in place.
const FileName = "data-sync-tasks-status.json"

// FileStore keeps the ledger in a single JSON document:
//
//	{"download": {"open-ifs": true}, "processing": {...}}
//
// Every call is a full read-modify-write of the document. Writers in other
// processes can lose updates (last write wins); the ledger is advisory and
// self-healing, so that is accepted. A mutex serializes writers within this
// process.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a ledger backed by <dir>/data-sync-tasks-status.json.
// The file is created lazily on first write.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName), logger: logger}
}

// Path returns the ledger document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(kind Kind, source domain.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false
	}
	return doc[string(kind)][string(source)]
}

func (s *FileStore) AnyActive(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false
	}
	for _, active := range doc[string(kind)] {
		if active {
			return true
		}
	}
	return false
}

func (s *FileStore) Set(kind Kind, source domain.Source, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("recreating corrupt sync status ledger", "path", s.path, "error", err)
		}
		doc = map[string]map[string]bool{}
	}
	if doc[string(kind)] == nil {
		doc[string(kind)] = map[string]bool{}
	}
	doc[string(kind)][string(source)] = active

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode sync status ledger: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write sync status ledger: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]map[string]bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc map[string]map[string]bool
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sync status ledger: %w", err)
	}
	return doc, nil
}
