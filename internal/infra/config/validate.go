package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// Missing API keys are not errors here; the doctor command reports them.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateOrchestrator(cfg, ve)
	validateMatcher(cfg, ve)
	validateRegistry(cfg, ve)
	validateLLM(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateOrchestrator(cfg *Config, ve *ValidationError) {
	if strings.TrimSpace(cfg.Orchestrator.Identity) == "" {
		ve.Add("orchestrator.identity must not be empty")
	}
	if cfg.Orchestrator.RequestTimeout < 0 {
		ve.Add("orchestrator.request_timeout must be >= 0")
	}
}

func validateMatcher(cfg *Config, ve *ValidationError) {
	m := cfg.Matcher
	if math.IsNaN(m.Threshold) || m.Threshold < 0 || m.Threshold > 1 {
		ve.Add("matcher.threshold must be within [0, 1], got %g", m.Threshold)
	}
	if m.CacheSize < 0 {
		ve.Add("matcher.cache_size must be >= 0")
	}
	w := m.Weights
	if !finiteWeight(w.Jaccard) || !finiteWeight(w.Keyword) || !finiteWeight(w.Cosine) {
		ve.Add("matcher.weights must be finite and not negative")
	}
	if w.Jaccard+w.Keyword+w.Cosine == 0 {
		ve.Add("matcher.weights must not all be zero")
	}
}

func finiteWeight(f float64) bool {
	return f >= 0 && !math.IsInf(f, 1)
}

func validateRegistry(cfg *Config, ve *ValidationError) {
	switch cfg.Registry.Backend {
	case BackendJSON, BackendSQLite:
	default:
		ve.Add("registry.backend %q is invalid (want: json, sqlite)", cfg.Registry.Backend)
	}
}

var validProviderTypes = map[string]bool{
	"gemini": true,
	"openai": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: gemini, openai)", i, p.Type)
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
	}

	if cfg.LLM.DefaultProvider != "" && !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}

	if cfg.LLM.Failover.Enabled {
		for _, fb := range cfg.LLM.Failover.Fallbacks {
			if !seen[fb] {
				ve.Add("llm.failover.fallbacks: unknown provider %q", fb)
			}
			if fb == cfg.LLM.DefaultProvider {
				ve.Add("llm.failover.fallbacks: %q is already the default provider", fb)
			}
		}
	}

	if rl := cfg.LLM.RateLimit; rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			ve.Add("llm.rate_limit.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if rl.Burst <= 0 {
			ve.Add("llm.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}
