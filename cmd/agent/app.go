package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentjungle/internal/adapter/capability"
	"agentjungle/internal/adapter/llm"
	"agentjungle/internal/adapter/sqlite"
	"agentjungle/internal/domain"
	"agentjungle/internal/infra/config"
	"agentjungle/internal/infra/logger"
	"agentjungle/internal/infra/tracer"
	"agentjungle/internal/usecase/orchestrator"
	"agentjungle/internal/usecase/registry"
	"agentjungle/internal/usecase/similarity"
)

// app holds everything a command may need. Fields beyond cfg, log and
// store are only set by newChatApp.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   domain.AgentStore
	matcher *similarity.Matcher
	orch    *orchestrator.Orchestrator

	closers []func() error
}

// newApp loads config and opens the registry. It does not touch the LLM
// layer, so admin commands work without API keys.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfigLoad, err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, closers: []func() error{closeLog}}

	store, closeStore, err := openStore(cfg.Registry, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.matcher = similarity.NewMatcher(
		similarity.NewScorer(matcherWeights(cfg.Matcher.Weights), cfg.Matcher.CacheSize), log)
	return a, nil
}

// newChatApp is newApp plus tracing, the LLM stack and the orchestrator.
func newChatApp(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}

	shutdown, err := tracer.Setup(ctx, a.cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	provider, reg, err := llm.Build(a.cfg.LLM, a.log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init llm: %w", err)
	}
	a.log.Info("llm providers ready", "providers", reg.List(), "default", provider.Name())

	client := capability.New(provider, capability.Options{
		Identity: a.cfg.Orchestrator.Identity,
	}, a.log)

	a.orch = orchestrator.New(orchestrator.Deps{
		Analyzer:  client,
		Creator:   client,
		Responder: client,
		Store:     a.store,
		Matcher:   a.matcher,
		Logger:    a.log,
	}, orchestrator.Options{
		Identity:   a.cfg.Orchestrator.Identity,
		Threshold:  a.cfg.Matcher.Threshold,
		TrackUsage: a.cfg.Orchestrator.TrackUsage,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openStore opens the configured registry backend. The returned closer is
// nil when the backend holds no resources.
func openStore(cfg config.RegistryConfig, log *slog.Logger) (domain.AgentStore, func() error, error) {
	path := cfg.FilePath()
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open registry: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := registry.Open(path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open registry: %w", err)
		}
		return s, nil, nil
	}
}

func matcherWeights(w config.MatcherWeights) similarity.Weights {
	return similarity.Weights{Jaccard: w.Jaccard, Keyword: w.Keyword, Cosine: w.Cosine}
}
