package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Matcher.Threshold != 0.09 {
		t.Errorf("Threshold = %g, want 0.09", cfg.Matcher.Threshold)
	}
	w := cfg.Matcher.Weights
	if w.Jaccard != 0.4 || w.Keyword != 0.3 || w.Cosine != 0.3 {
		t.Errorf("Weights = %+v, want 0.4/0.3/0.3", w)
	}
	if cfg.Orchestrator.Identity != "MasterAgent" {
		t.Errorf("Identity = %q", cfg.Orchestrator.Identity)
	}
	if cfg.Registry.Backend != BackendJSON {
		t.Errorf("Backend = %q, want json", cfg.Registry.Backend)
	}
	if cfg.LLM.DefaultProvider != "gemini" {
		t.Errorf("DefaultProvider = %q, want gemini", cfg.LLM.DefaultProvider)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestRegistryFilePath(t *testing.T) {
	r := RegistryConfig{Backend: BackendJSON}
	if got := r.FilePath(); !strings.HasSuffix(got, "agents_storage.json") {
		t.Errorf("json default path = %q", got)
	}
	r.Backend = BackendSQLite
	if got := r.FilePath(); !strings.HasSuffix(got, "agents.db") {
		t.Errorf("sqlite default path = %q", got)
	}
	r.Path = "/srv/agents.db"
	if got := r.FilePath(); got != "/srv/agents.db" {
		t.Errorf("explicit path = %q", got)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Matcher.CacheSize != 512 {
		t.Errorf("expected defaults, got CacheSize=%d", cfg.Matcher.CacheSize)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  identity: "Coordinator"
  track_usage: true
matcher:
  threshold: 0.25
  cache_size: 0
  weights:
    jaccard: 0.5
    keyword: 0.25
    cosine: 0.25
registry:
  backend: sqlite
  path: /tmp/agents.db
llm:
  default_provider: "local"
  providers:
    - name: "local"
      type: "openai"
      base_url: "http://localhost:11434/v1"
      api_key: "test-key"
      model: "llama3"
      resp_timeout: 45s
logger:
  level: "debug"
  format: "json"
`, 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Orchestrator.Identity != "Coordinator" || !cfg.Orchestrator.TrackUsage {
		t.Errorf("Orchestrator = %+v", cfg.Orchestrator)
	}
	if cfg.Matcher.Threshold != 0.25 || cfg.Matcher.CacheSize != 0 {
		t.Errorf("Matcher = %+v", cfg.Matcher)
	}
	if cfg.Registry.Backend != BackendSQLite || cfg.Registry.FilePath() != "/tmp/agents.db" {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if len(cfg.LLM.Providers) != 1 {
		t.Fatalf("Providers = %d, want 1", len(cfg.LLM.Providers))
	}
	p := cfg.LLM.Providers[0]
	if p.BaseURL != "http://localhost:11434/v1" || p.RespTimeout != 45*time.Second {
		t.Errorf("Provider = %+v", p)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "json" {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
	// Sections absent from the file keep their defaults.
	if !cfg.LLM.CircuitBreaker.Enabled {
		t.Error("circuit breaker default lost")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "registry:\n  backend: postgres\n", 0600)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "registry.backend") {
		t.Fatalf("expected registry.backend error, got %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "matcher: [unclosed", 0600)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadRejectsWorldWritable(t *testing.T) {
	path := writeConfig(t, "logger:\n  level: info\n", 0600)
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "insecure permissions") {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AGENTJUNGLE_ORCHESTRATOR_IDENTITY", "EnvAgent")
	t.Setenv("AGENTJUNGLE_ORCHESTRATOR_TRACK_USAGE", "true")
	t.Setenv("AGENTJUNGLE_ORCHESTRATOR_REQUEST_TIMEOUT", "10s")
	t.Setenv("AGENTJUNGLE_MATCHER_THRESHOLD", "0.3")
	t.Setenv("AGENTJUNGLE_MATCHER_CACHE_SIZE", "64")
	t.Setenv("AGENTJUNGLE_REGISTRY_BACKEND", "SQLite")
	t.Setenv("AGENTJUNGLE_REGISTRY_PATH", "/var/lib/agents.db")
	t.Setenv("AGENTJUNGLE_LLM_FAILOVER_FALLBACKS", " backup , ,other ")
	t.Setenv("AGENTJUNGLE_LOGGER_LEVEL", "warn")
	t.Setenv("AGENTJUNGLE_TRACER_ENABLED", "true")
	t.Setenv("AGENTJUNGLE_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Orchestrator.Identity != "EnvAgent" || !cfg.Orchestrator.TrackUsage {
		t.Errorf("Orchestrator = %+v", cfg.Orchestrator)
	}
	if cfg.Orchestrator.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Orchestrator.RequestTimeout)
	}
	if cfg.Matcher.Threshold != 0.3 || cfg.Matcher.CacheSize != 64 {
		t.Errorf("Matcher = %+v", cfg.Matcher)
	}
	if cfg.Registry.Backend != BackendSQLite || cfg.Registry.Path != "/var/lib/agents.db" {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if !cfg.LLM.Failover.Enabled || len(cfg.LLM.Failover.Fallbacks) != 2 || cfg.LLM.Failover.Fallbacks[0] != "backup" {
		t.Errorf("Failover = %+v", cfg.LLM.Failover)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
}

func TestApplyEnvOverridesIgnoresBadNumbers(t *testing.T) {
	t.Setenv("AGENTJUNGLE_MATCHER_THRESHOLD", "high")
	t.Setenv("AGENTJUNGLE_ORCHESTRATOR_REQUEST_TIMEOUT", "-5s")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Matcher.Threshold != 0.09 {
		t.Errorf("Threshold = %g, want unchanged", cfg.Matcher.Threshold)
	}
	if cfg.Orchestrator.RequestTimeout != 2*time.Minute {
		t.Errorf("RequestTimeout = %v, want unchanged", cfg.Orchestrator.RequestTimeout)
	}
}

func TestProviderKeyOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "vendor-gemini")
	t.Setenv("OPENAI_API_KEY", "vendor-openai")
	t.Setenv("AGENTJUNGLE_LLM_PROVIDER_MY_OPENAI_API_KEY", "prefixed")
	t.Setenv("AGENTJUNGLE_LLM_PROVIDER_MY_OPENAI_MODEL", "gpt-4o-mini")

	cfg := Defaults()
	cfg.LLM.Providers = append(cfg.LLM.Providers,
		ProviderConfig{Name: "my-openai", Type: "openai", Model: "gpt-4o"},
		ProviderConfig{Name: "explicit", Type: "openai", Model: "gpt-4o", APIKey: "from-file"},
	)
	ApplyEnvOverrides(cfg)

	if got := cfg.LLM.Providers[0].APIKey; got != "vendor-gemini" {
		t.Errorf("gemini key = %q, want vendor fallback", got)
	}
	if got := cfg.LLM.Providers[1]; got.APIKey != "prefixed" || got.Model != "gpt-4o-mini" {
		t.Errorf("my-openai = %+v", got)
	}
	if got := cfg.LLM.Providers[2].APIKey; got != "from-file" {
		t.Errorf("explicit key = %q, must not be replaced by vendor var", got)
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, `
llm:
  default_provider: gemini
  providers:
    - name: gemini
      type: gemini
      model: gemini-2.5-flash
      api_key: "enc:`+enc+`"
`, 0600)

	t.Setenv("AGENTJUNGLE_CONFIG_KEY", "hunter2")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers[0].APIKey; got != "sk-secret" {
		t.Errorf("APIKey = %q", got)
	}

	t.Setenv("AGENTJUNGLE_CONFIG_KEY", "wrong")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "decrypt secrets") {
		t.Errorf("expected decrypt error, got %v", err)
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"gemini":    "GEMINI",
		"my-openai": "MY_OPENAI",
		"a.b c9":    "A_B_C9",
	}
	for in, want := range tests {
		if got := envName(in); got != want {
			t.Errorf("envName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyEnvOverridesNaNThresholdFailsValidation(t *testing.T) {
	t.Setenv("AGENTJUNGLE_MATCHER_THRESHOLD", "NaN")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "matcher.threshold") {
		t.Fatalf("expected threshold validation error, got %v", err)
	}
}
