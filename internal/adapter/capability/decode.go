package capability

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/kaptinlin/jsonschema"

	"agentjungle/internal/domain"
)

const analysisSchema = `{
	"type": "object",
	"required": ["task_type", "agent_description", "requires_delegation"],
	"properties": {
		"task_type": {"type": "string", "minLength": 1},
		"agent_description": {"type": "string", "minLength": 1},
		"complexity": {"type": "string"},
		"requires_delegation": {"type": "boolean"}
	}
}`

const agentSpecSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"system_prompt": {"type": "string"},
		"task_type": {"type": "string"}
	}
}`

var (
	analysisValidator  = mustCompile(analysisSchema)
	agentSpecValidator = mustCompile(agentSpecSchema)
)

func mustCompile(schema string) *jsonschema.Schema {
	s, err := jsonschema.NewCompiler().Compile([]byte(schema))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes markdown code fences if the model wrapped its output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// decodeJSON parses model output into out. Output that is not valid JSON
// gets one repair attempt; the parsed value must satisfy schema.
func decodeJSON(raw string, schema *jsonschema.Schema, out any) error {
	raw = stripCodeFences(raw)
	if raw == "" {
		return domain.ErrEmptyResult
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return fmt.Errorf("invalid JSON after repair: %w", err)
		}
		raw = repaired
	}

	if result := schema.Validate(parsed); !result.IsValid() {
		return fmt.Errorf("schema mismatch: %s", result.Error())
	}
	return json.Unmarshal([]byte(raw), out)
}
