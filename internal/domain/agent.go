package domain

import (
	"regexp"
	"strings"
)

// Complexity classifies how demanding a request is.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// ParseComplexity maps free text to a Complexity. Anything unrecognised is simple.
func ParseComplexity(s string) Complexity {
	if strings.EqualFold(strings.TrimSpace(s), string(ComplexityComplex)) {
		return ComplexityComplex
	}
	return ComplexitySimple
}

// Default descriptor values used when analysis yields nothing usable.
const (
	DefaultTaskType         = "general"
	DefaultAgentDescription = "General purpose assistant"
)

// TaskDescriptor is the per-request classification produced by an Analyzer.
// It is never persisted.
type TaskDescriptor struct {
	TaskType           string     `json:"task_type"`
	AgentDescription   string     `json:"agent_description"`
	Complexity         Complexity `json:"complexity"`
	RequiresDelegation bool       `json:"requires_delegation"`
}

// DefaultTaskDescriptor is the descriptor substituted for a failed analysis.
func DefaultTaskDescriptor() TaskDescriptor {
	return TaskDescriptor{
		TaskType:           DefaultTaskType,
		AgentDescription:   DefaultAgentDescription,
		Complexity:         ComplexitySimple,
		RequiresDelegation: false,
	}
}

// Valid reports whether the descriptor carries enough to match or create an agent.
func (d TaskDescriptor) Valid() bool {
	return strings.TrimSpace(d.TaskType) != "" && strings.TrimSpace(d.AgentDescription) != ""
}

// AgentSpec is the set of fields a Creator proposes for a new agent.
type AgentSpec struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	TaskType     string `json:"task_type"`
}

// AgentRecord is a persisted, reusable agent specialization.
// Name is the primary key within a registry.
type AgentRecord struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"system_prompt"`
	TaskType     string  `json:"task_type"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    *string `json:"created_at"`
	LastUsed     *string `json:"last_used"`
}

// NewAgentRecord builds a record from a spec, filling blank fields from the
// descriptor that triggered its creation.
func NewAgentRecord(spec AgentSpec, desc TaskDescriptor, createdBy string) AgentRecord {
	rec := AgentRecord{
		Name:         strings.TrimSpace(spec.Name),
		Description:  strings.TrimSpace(spec.Description),
		SystemPrompt: strings.TrimSpace(spec.SystemPrompt),
		TaskType:     strings.TrimSpace(spec.TaskType),
		CreatedBy:    createdBy,
	}
	if rec.Description == "" {
		rec.Description = desc.AgentDescription
	}
	if rec.TaskType == "" {
		rec.TaskType = desc.TaskType
	}
	if rec.SystemPrompt == "" {
		rec.SystemPrompt = GenericSystemPrompt(rec.TaskType)
	}
	return rec
}

// FallbackAgentRecord is the deterministic record used when no Creator result
// is available for desc.
func FallbackAgentRecord(desc TaskDescriptor, createdBy string) AgentRecord {
	return AgentRecord{
		Name:         desc.TaskType + "Agent",
		Description:  desc.AgentDescription,
		SystemPrompt: GenericSystemPrompt(desc.TaskType),
		TaskType:     desc.TaskType,
		CreatedBy:    createdBy,
	}
}

// GenericSystemPrompt names taskType in a one-line behavior description.
func GenericSystemPrompt(taskType string) string {
	if strings.TrimSpace(taskType) == "" {
		taskType = "general tasks"
	}
	return "You are a helpful assistant specializing in " + taskType + "."
}

var nonNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeAgentName strips characters that are not letters, digits or
// underscores and guarantees a name of at least three characters that starts
// with a letter. A name with nothing left becomes "Agent".
func SanitizeAgentName(name string) string {
	s := nonNameChars.ReplaceAllString(name, "")
	if s != "" {
		if c := s[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			s = "Agent" + s
		}
	}
	if len(s) < 3 {
		s = "Agent" + s
	}
	return s
}

// Truncate shortens text to at most maxLen runes, ending in "..." when cut.
func Truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
