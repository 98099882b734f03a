// Package registry implements the JSON file backed agent registry.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"agentjungle/internal/domain"
)

// document is the on-disk shape of the registry file.
type document struct {
	Agents []domain.AgentRecord `json:"agents"`
}

// FileStore implements domain.AgentStore with a single JSON document.
// Every mutation rewrites the whole file.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	agents []domain.AgentRecord
	// loadErr is set when Open could not read or reset the file. Stats
	// reports it. When the file exists but was never read, writes are
	// refused so they cannot clobber it.
	loadErr  error
	readOnly bool
}

var _ domain.AgentStore = (*FileStore)(nil)

// Open loads the registry at path, creating it when absent. A file that
// cannot be parsed is logged and replaced by an empty registry. I/O failures
// do not fail Open: the store starts empty and Stats reports the error.
func Open(path string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.NewDomainError("registry.Open", domain.ErrInvalidInput, "empty path")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &FileStore{path: path, logger: logger}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		s.degrade(domain.StorageIOError("registry.Open", fmt.Errorf("create dir: %w", err)))
		return s, nil
	}
	if err := s.load(); err != nil {
		s.degrade(err)
	}
	return s, nil
}

// Path returns the registry file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Upsert(_ context.Context, rec domain.AgentRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.NewDomainError("registry.Upsert", domain.ErrInvalidInput, "agent name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(rec)
}

func (s *FileStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.agents, name)
	if idx < 0 {
		return false, nil
	}
	next := make([]domain.AgentRecord, 0, len(s.agents)-1)
	next = append(next, s.agents[:idx]...)
	next = append(next, s.agents[idx+1:]...)
	if err := s.commit(next, "registry.Delete"); err != nil {
		return false, err
	}
	s.logger.Info("agent deleted", "agent", name)
	return true, nil
}

func (s *FileStore) Get(_ context.Context, name string) (domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := indexOf(s.agents, name); idx >= 0 {
		return s.agents[idx], nil
	}
	return domain.AgentRecord{}, domain.NewDomainError("registry.Get", domain.ErrNotFound, name)
}

func (s *FileStore) List(_ context.Context) ([]domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

func (s *FileStore) FindByType(_ context.Context, taskType string) ([]domain.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FilterByType(s.agents, taskType), nil
}

func (s *FileStore) Stats(_ context.Context) domain.RegistryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.RegistryStats{
		Total:    len(s.agents),
		ByType:   domain.CountByType(s.agents),
		Location: s.path,
	}
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		stats.Exists = true
	case !errors.Is(err, fs.ErrNotExist):
		stats.Err = domain.StorageIOError("registry.Stats", err)
	}
	if s.loadErr != nil {
		stats.Err = s.loadErr
	}
	return stats
}

// Transact runs fn under the write lock. Upserts made through tx are
// persisted immediately; an error returned by fn does not undo them.
func (s *FileStore) Transact(ctx context.Context, fn func(tx domain.AgentTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(fileTx{s})
}

type fileTx struct{ s *FileStore }

func (tx fileTx) List() []domain.AgentRecord { return tx.s.snapshot() }

func (tx fileTx) Upsert(rec domain.AgentRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.NewDomainError("registry.Upsert", domain.ErrInvalidInput, "agent name is empty")
	}
	return tx.s.upsertLocked(rec)
}

// --- internals; callers hold s.mu ---

func (s *FileStore) upsertLocked(rec domain.AgentRecord) error {
	next := s.snapshot()
	if idx := indexOf(next, rec.Name); idx >= 0 {
		next[idx] = rec
	} else {
		next = append(next, rec)
	}
	if err := s.commit(next, "registry.Upsert"); err != nil {
		return err
	}
	s.logger.Debug("agent saved", "agent", rec.Name, "task_type", rec.TaskType, "total", len(next))
	return nil
}

// commit persists next and only then makes it the live collection.
func (s *FileStore) commit(next []domain.AgentRecord, op string) error {
	if s.readOnly {
		return domain.StorageIOError(op, fmt.Errorf("registry not loaded: %w", s.loadErr))
	}
	if err := writeJSON(s.path, document{Agents: next}); err != nil {
		s.logger.Error("failed to save agents", "path", s.path, "error", err)
		return domain.StorageIOError(op, err)
	}
	s.agents = next
	s.loadErr = nil
	return nil
}

func (s *FileStore) snapshot() []domain.AgentRecord {
	out := make([]domain.AgentRecord, len(s.agents))
	copy(out, s.agents)
	return out
}

func indexOf(agents []domain.AgentRecord, name string) int {
	for i := range agents {
		if agents[i].Name == name {
			return i
		}
	}
	return -1
}

// --- persistence ---

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("agent registry not found, creating", "path", s.path)
		return s.reset("registry.Open")
	}
	if err != nil {
		s.readOnly = true
		return domain.StorageIOError("registry.Open", err)
	}

	agents, perr := parseDocument(data)
	if perr != nil {
		s.logger.Warn("agent registry unreadable, starting empty",
			"path", s.path, "error", fmt.Errorf("%w: %w", domain.ErrStorageCorrupt, perr))
		return s.reset("registry.Open")
	}

	s.agents = dedupe(agents)
	if len(s.agents) != len(agents) {
		s.logger.Warn("duplicate agent names collapsed", "path", s.path,
			"before", len(agents), "after", len(s.agents))
		if err := s.commit(s.agents, "registry.Open"); err != nil {
			s.loadErr = err
		}
	}
	s.logger.Info("agent registry loaded", "path", s.path, "agents", len(s.agents))
	return nil
}

// degrade records err and leaves the store empty.
func (s *FileStore) degrade(err error) {
	s.logger.Error("agent registry unavailable, starting empty", "path", s.path, "error", err)
	s.agents = []domain.AgentRecord{}
	s.loadErr = err
}

func (s *FileStore) reset(op string) error {
	return s.commit([]domain.AgentRecord{}, op)
}

// parseDocument decodes a registry file. A missing or null "agents" key is
// treated the same as malformed JSON.
func parseDocument(data []byte) ([]domain.AgentRecord, error) {
	var raw struct {
		Agents *[]domain.AgentRecord `json:"agents"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, err
	}
	if raw.Agents == nil {
		return nil, errors.New(`missing "agents" list`)
	}
	return *raw.Agents, nil
}

// dedupe keeps one record per name: the last one in the file, placed where
// the name first appeared.
func dedupe(agents []domain.AgentRecord) []domain.AgentRecord {
	pos := make(map[string]int, len(agents))
	out := make([]domain.AgentRecord, 0, len(agents))
	for _, a := range agents {
		if i, ok := pos[a.Name]; ok {
			out[i] = a
			continue
		}
		pos[a.Name] = len(out)
		out = append(out, a)
	}
	return out
}

// writeJSON atomically writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.WrapOp("marshal", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return domain.WrapOp("create temp", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.WrapOp("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.WrapOp("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.WrapOp("close", err)
	}
	return domain.WrapOp("rename", os.Rename(tmpName, path))
}
