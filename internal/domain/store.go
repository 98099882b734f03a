package domain

import (
	"context"
	"strings"
)

// UnknownTaskType is the stats bucket for records without a task type.
const UnknownTaskType = "unknown"

// AgentStore is the durable, name-keyed agent registry.
//
// Mutations (Upsert, Delete, Transact) are serialized against each other.
// Reads always observe a fully applied snapshot.
type AgentStore interface {
	// Upsert replaces the record with the same name in place, or appends it.
	Upsert(ctx context.Context, rec AgentRecord) error
	// Delete removes the record with the given name and reports whether one existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Get returns the record with the given name or ErrNotFound.
	Get(ctx context.Context, name string) (AgentRecord, error)
	// List returns every record in stored order.
	List(ctx context.Context) ([]AgentRecord, error)
	// FindByType returns records whose task type equals taskType, ignoring case.
	FindByType(ctx context.Context, taskType string) ([]AgentRecord, error)
	// Stats summarizes the registry. It never fails; problems land in Err.
	Stats(ctx context.Context) RegistryStats
	// Transact runs fn while holding the registry's write lock, so a read
	// followed by an upsert inside fn cannot interleave with other writers.
	Transact(ctx context.Context, fn func(tx AgentTx) error) error
}

// AgentTx is the view of the registry available inside Transact.
type AgentTx interface {
	List() []AgentRecord
	Upsert(rec AgentRecord) error
}

// RegistryStats is a point-in-time summary of a registry.
type RegistryStats struct {
	Total    int            `json:"total_agents"`
	ByType   map[string]int `json:"agents_by_type"`
	Location string         `json:"storage_file"`
	Exists   bool           `json:"file_exists"`
	Err      error          `json:"-"`
}

// CountByType builds the per-type stats for records.
func CountByType(records []AgentRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		t := r.TaskType
		if strings.TrimSpace(t) == "" {
			t = UnknownTaskType
		}
		counts[t]++
	}
	return counts
}

// FilterByType returns the records whose task type matches taskType case-insensitively.
func FilterByType(records []AgentRecord, taskType string) []AgentRecord {
	out := make([]AgentRecord, 0)
	for _, r := range records {
		if strings.EqualFold(r.TaskType, taskType) {
			out = append(out, r)
		}
	}
	return out
}
