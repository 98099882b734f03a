// Package sqlite implements domain.AgentStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"agentjungle/internal/domain"
)

// Store implements domain.AgentStore using SQLite. Insertion order is kept
// by the seq column, which an upsert never changes.
type Store struct {
	path   string
	db     *sql.DB
	logger *slog.Logger

	// wmu serializes writers inside this process so Transact can span a
	// read and a later upsert without holding a SQL transaction open.
	wmu sync.Mutex
}

var _ domain.AgentStore = (*Store)(nil)

// Open opens (or creates) the database at path and runs the schema
// migration. A file that is not a usable database is moved aside to
// <path>.corrupt-<ulid> and replaced by an empty one.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.NewDomainError("sqlite.Open", domain.ErrInvalidInput, "empty path")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, domain.StorageIOError("sqlite.Open", fmt.Errorf("create dir: %w", err))
	}

	db, err := openDB(path)
	if err == nil {
		return &Store{path: path, db: db, logger: logger}, nil
	}

	aside := path + ".corrupt-" + ulid.Make().String()
	logger.Warn("agent database unusable, moving aside",
		"path", path, "moved_to", aside, "error", fmt.Errorf("%w: %w", domain.ErrStorageCorrupt, err))
	if rerr := os.Rename(path, aside); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
		return nil, domain.StorageIOError("sqlite.Open", rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}

	db, err = openDB(path)
	if err != nil {
		return nil, domain.StorageIOError("sqlite.Open", err)
	}
	return &Store{path: path, db: db, logger: logger}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open agent db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate agent db: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL UNIQUE,
			description   TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			task_type     TEXT NOT NULL DEFAULT '',
			created_by    TEXT NOT NULL DEFAULT '',
			created_at    TEXT,
			last_used     TEXT
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

const selectColumns = "SELECT name, description, system_prompt, task_type, created_by, created_at, last_used FROM agents"

func (s *Store) Upsert(ctx context.Context, rec domain.AgentRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.NewDomainError("sqlite.Upsert", domain.ErrInvalidInput, "agent name is empty")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.upsert(ctx, rec)
}

func (s *Store) upsert(ctx context.Context, rec domain.AgentRecord) error {
	ctx = context.WithoutCancel(ctx)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agents (name, description, system_prompt, task_type, created_by, created_at, last_used)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				description   = excluded.description,
				system_prompt = excluded.system_prompt,
				task_type     = excluded.task_type,
				created_by    = excluded.created_by,
				created_at    = excluded.created_at,
				last_used     = excluded.last_used`,
			rec.Name, rec.Description, rec.SystemPrompt, rec.TaskType, rec.CreatedBy,
			nullString(rec.CreatedAt), nullString(rec.LastUsed),
		)
		return err
	})
	if err != nil {
		s.logger.Error("failed to save agent", "agent", rec.Name, "error", err)
		return domain.StorageIOError("sqlite.Upsert", err)
	}
	s.logger.Debug("agent saved", "agent", rec.Name, "task_type", rec.TaskType)
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM agents WHERE name = ?", name)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, domain.StorageIOError("sqlite.Delete", err)
	}
	if n > 0 {
		s.logger.Info("agent deleted", "agent", name)
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, name string) (domain.AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE name = ?", name)
	rec, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AgentRecord{}, domain.NewDomainError("sqlite.Get", domain.ErrNotFound, name)
	}
	if err != nil {
		return domain.AgentRecord{}, domain.StorageIOError("sqlite.Get", err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]domain.AgentRecord, error) {
	agents, err := queryAgents(ctx, s.db, selectColumns+" ORDER BY seq")
	if err != nil {
		return nil, domain.StorageIOError("sqlite.List", err)
	}
	return agents, nil
}

func (s *Store) FindByType(ctx context.Context, taskType string) ([]domain.AgentRecord, error) {
	// LOWER() only folds ASCII, so the filter runs in Go.
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterByType(all, taskType), nil
}

func (s *Store) Stats(ctx context.Context) domain.RegistryStats {
	stats := domain.RegistryStats{Location: s.path, ByType: map[string]int{}}
	if _, err := os.Stat(s.path); err == nil {
		stats.Exists = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		stats.Err = domain.StorageIOError("sqlite.Stats", err)
		return stats
	}

	agents, err := s.List(ctx)
	if err != nil {
		stats.Err = err
		return stats
	}
	stats.Total = len(agents)
	stats.ByType = domain.CountByType(agents)
	return stats
}

// Transact runs fn while holding the store's writer lock.
func (s *Store) Transact(ctx context.Context, fn func(tx domain.AgentTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	snapshot, err := s.List(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	return fn(&sqliteTx{s: s, ctx: context.WithoutCancel(ctx), agents: snapshot})
}

// sqliteTx keeps its own copy of the rows so List inside a transaction
// reflects upserts already made through it.
type sqliteTx struct {
	s      *Store
	ctx    context.Context
	agents []domain.AgentRecord
}

func (tx *sqliteTx) List() []domain.AgentRecord {
	out := make([]domain.AgentRecord, len(tx.agents))
	copy(out, tx.agents)
	return out
}

func (tx *sqliteTx) Upsert(rec domain.AgentRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.NewDomainError("sqlite.Upsert", domain.ErrInvalidInput, "agent name is empty")
	}
	if err := tx.s.upsert(tx.ctx, rec); err != nil {
		return err
	}
	for i := range tx.agents {
		if tx.agents[i].Name == rec.Name {
			tx.agents[i] = rec
			return nil
		}
	}
	tx.agents = append(tx.agents, rec)
	return nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryAgents(ctx context.Context, q queryer, query string, args ...any) ([]domain.AgentRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]domain.AgentRecord, 0)
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, rec)
	}
	return agents, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (domain.AgentRecord, error) {
	var (
		rec                 domain.AgentRecord
		createdAt, lastUsed sql.NullString
	)
	if err := row.Scan(&rec.Name, &rec.Description, &rec.SystemPrompt, &rec.TaskType,
		&rec.CreatedBy, &createdAt, &lastUsed); err != nil {
		return domain.AgentRecord{}, err
	}
	rec.CreatedAt = stringPtr(createdAt)
	rec.LastUsed = stringPtr(lastUsed)
	return rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
