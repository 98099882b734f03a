package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override.
const envPrefix = "AGENTJUNGLE_"

// Registry backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Matcher      MatcherConfig      `yaml:"matcher"`
	Registry     RegistryConfig     `yaml:"registry"`
	LLM          LLMConfig          `yaml:"llm"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
}

// OrchestratorConfig holds request routing settings.
type OrchestratorConfig struct {
	Identity       string        `yaml:"identity"`
	TrackUsage     bool          `yaml:"track_usage"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MatcherConfig holds agent similarity settings.
type MatcherConfig struct {
	Threshold float64        `yaml:"threshold"`
	CacheSize int            `yaml:"cache_size"` // 0 disables the profile cache
	Weights   MatcherWeights `yaml:"weights"`
}

// MatcherWeights are the coefficients of the combined similarity score.
type MatcherWeights struct {
	Jaccard float64 `yaml:"jaccard"`
	Keyword float64 `yaml:"keyword"`
	Cosine  float64 `yaml:"cosine"`
}

// RegistryConfig selects and locates the agent registry.
type RegistryConfig struct {
	Backend string `yaml:"backend"` // "json" or "sqlite"
	Path    string `yaml:"path"`    // empty = backend default under the data dir
}

// FilePath returns Path, or the backend's default location when Path is empty.
func (r RegistryConfig) FilePath() string {
	if r.Path != "" {
		return r.Path
	}
	if r.Backend == BackendSQLite {
		return filepath.Join(defaultDataDir(), "agents.db")
	}
	return filepath.Join(defaultDataDir(), "agents_storage.json")
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit       RateLimitConfig      `yaml:"rate_limit"`
}

// FailoverConfig holds model failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RateLimitConfig caps outgoing LLM calls per provider.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "gemini" or "openai"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultDataDir returns the persistent data directory under $HOME/.agentjungle/data.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".agentjungle", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			Identity:       "MasterAgent",
			RequestTimeout: 2 * time.Minute,
		},
		Matcher: MatcherConfig{
			Threshold: 0.09,
			CacheSize: 512,
			Weights:   MatcherWeights{Jaccard: 0.4, Keyword: 0.3, Cosine: 0.3},
		},
		Registry: RegistryConfig{
			Backend: BackendJSON,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Providers: []ProviderConfig{
				{
					Name:  "gemini",
					Type:  "gemini",
					Model: "gemini-2.5-flash",
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 2,
				Burst:             4,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, decrypts
// secrets and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv(envPrefix + "CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps AGENTJUNGLE_* env vars to config fields. Provider
// API keys also fall back to the vendor variables GEMINI_API_KEY and
// OPENAI_API_KEY when left blank.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "ORCHESTRATOR_IDENTITY"); v != "" {
		cfg.Orchestrator.Identity = v
	}
	if v := os.Getenv(envPrefix + "ORCHESTRATOR_TRACK_USAGE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Orchestrator.TrackUsage = b
		}
	}
	if v := os.Getenv(envPrefix + "ORCHESTRATOR_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Orchestrator.RequestTimeout = d
		}
	}
	if v := os.Getenv(envPrefix + "MATCHER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matcher.Threshold = f
		}
	}
	if v := os.Getenv(envPrefix + "MATCHER_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matcher.CacheSize = n
		}
	}
	if v := os.Getenv(envPrefix + "REGISTRY_BACKEND"); v != "" {
		cfg.Registry.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv(envPrefix + "LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv(envPrefix + "LLM_FAILOVER_FALLBACKS"); v != "" {
		cfg.LLM.Failover.Enabled = true
		cfg.LLM.Failover.Fallbacks = splitAndTrim(v, ",")
	}
	if v := os.Getenv(envPrefix + "LLM_RATE_LIMIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LLM.RateLimit.Enabled = b
		}
	}
	if v := os.Getenv(envPrefix + "LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv(envPrefix + "LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv(envPrefix + "TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv(envPrefix + "TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		key := envPrefix + "LLM_PROVIDER_" + envName(p.Name)
		if v := os.Getenv(key + "_API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(key + "_MODEL"); v != "" {
			p.Model = v
		}
		if v := os.Getenv(key + "_BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if p.APIKey == "" {
			p.APIKey = os.Getenv(vendorKeyVar(p.Type))
		}
	}
}

// vendorKeyVar is the provider vendor's conventional API key variable.
func vendorKeyVar(providerType string) string {
	switch providerType {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// envName upper-cases name and replaces characters not allowed in
// environment variable names.
func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
}

// splitAndTrim splits s by sep and trims whitespace from each element,
// dropping empty ones.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	// Allow 0600 and 0644 (readable by others but not writable).
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
