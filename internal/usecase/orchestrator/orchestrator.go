// Package orchestrator routes each request to a direct reply, a reused
// specialist agent, or a newly created one.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"agentjungle/internal/domain"
	"agentjungle/internal/infra/tracer"
	"agentjungle/internal/usecase/similarity"
)

// DefaultIdentity is the CreatedBy value stamped on records this
// orchestrator registers.
const DefaultIdentity = "MasterAgent"

const (
	directFallbackReply = "I'm unable to process your request at the moment."
	previewLen          = 100
)

// Route tells how a request was served.
type Route string

const (
	RouteDirect  Route = "direct"
	RouteReused  Route = "reused"
	RouteCreated Route = "created"

	// RouteFallback means the registry could not be used, so a fallback
	// agent served the request without being persisted.
	RouteFallback Route = "fallback"
)

// Deps are the collaborators of an Orchestrator. Analyzer, Creator,
// Responder and Store are required.
type Deps struct {
	Analyzer  domain.Analyzer
	Creator   domain.Creator
	Responder domain.Responder
	Store     domain.AgentStore
	Matcher   *similarity.Matcher // nil = default scorer
	Logger    *slog.Logger
	Now       func() time.Time // for tests
}

// Options tune routing. Start from DefaultOptions.
type Options struct {
	Identity   string
	Threshold  float64
	TrackUsage bool // stamp LastUsed when an agent is reused
}

// DefaultOptions returns the standard identity and match threshold.
func DefaultOptions() Options {
	return Options{Identity: DefaultIdentity, Threshold: similarity.DefaultThreshold}
}

// Result is the full outcome of one request.
type Result struct {
	Reply      string
	Route      Route
	Agent      *domain.AgentRecord // nil on the direct route
	Descriptor domain.TaskDescriptor
	Score      float64 // match score when Route is RouteReused
	RequestID  string
}

// Orchestrator runs the analyze, match, create and delegate sequence.
// It is safe for concurrent use; match and create for one request happen
// inside a single store transaction.
type Orchestrator struct {
	analyzer  domain.Analyzer
	creator   domain.Creator
	responder domain.Responder
	store     domain.AgentStore
	matcher   *similarity.Matcher
	logger    *slog.Logger
	now       func() time.Time
	opts      Options
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Matcher == nil {
		deps.Matcher = similarity.NewMatcher(nil, deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if strings.TrimSpace(opts.Identity) == "" {
		opts.Identity = DefaultIdentity
	}
	return &Orchestrator{
		analyzer:  deps.Analyzer,
		creator:   deps.Creator,
		responder: deps.Responder,
		store:     deps.Store,
		matcher:   deps.Matcher,
		logger:    deps.Logger,
		now:       deps.Now,
		opts:      opts,
	}
}

// Process returns the reply for request. It never fails: every collaborator
// error is mapped to a fallback reply.
func (o *Orchestrator) Process(ctx context.Context, request string) string {
	return o.Handle(ctx, request).Reply
}

// Handle is Process with the routing details attached.
func (o *Orchestrator) Handle(ctx context.Context, request string) Result {
	res := Result{RequestID: ulid.Make().String()}
	logger := o.logger.With("request_id", res.RequestID)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.handle",
		trace.WithAttributes(tracer.StringAttr("request_id", res.RequestID)))
	defer span.End()

	logger.Info("processing request", "request", domain.Truncate(request, previewLen))

	res.Descriptor = o.analyze(ctx, logger, request)
	span.SetAttributes(
		tracer.StringAttr("task_type", res.Descriptor.TaskType),
		tracer.BoolAttr("requires_delegation", res.Descriptor.RequiresDelegation),
	)

	if !res.Descriptor.RequiresDelegation {
		res.Route = RouteDirect
		res.Reply = o.respond(ctx, logger, nil, request)
		span.SetAttributes(tracer.StringAttr("route", string(res.Route)))
		tracer.SetOK(span)
		return res
	}

	agent, route, score := o.resolve(ctx, logger, res.Descriptor)
	res.Agent, res.Route, res.Score = &agent, route, score
	res.Reply = o.respond(ctx, logger, &agent, request)

	span.SetAttributes(
		tracer.StringAttr("route", string(route)),
		tracer.StringAttr("agent", agent.Name),
		tracer.FloatAttr("score", score),
	)
	tracer.SetOK(span)
	return res
}

func (o *Orchestrator) analyze(ctx context.Context, logger *slog.Logger, request string) domain.TaskDescriptor {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.analyze")
	defer span.End()

	desc, err := o.analyzer.Analyze(ctx, request)
	if err == nil && !desc.Valid() {
		err = domain.ErrEmptyResult
	}
	if err != nil {
		logger.Warn("task analysis failed, using default descriptor",
			"error", fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err))
		tracer.RecordError(span, err)
		return domain.DefaultTaskDescriptor()
	}

	desc.Complexity = domain.ParseComplexity(string(desc.Complexity))
	logger.Info("task analyzed",
		"task_type", desc.TaskType,
		"complexity", desc.Complexity,
		"requires_delegation", desc.RequiresDelegation)
	return desc
}

// resolve finds or creates the agent for desc. The match read, the create
// decision and the upsert run as one store transaction.
func (o *Orchestrator) resolve(ctx context.Context, logger *slog.Logger, desc domain.TaskDescriptor) (domain.AgentRecord, Route, float64) {
	var (
		agent domain.AgentRecord
		route Route
		score float64
	)

	err := o.store.Transact(ctx, func(tx domain.AgentTx) error {
		_, span := tracer.StartSpan(ctx, "orchestrator.match")
		match, ok := o.matcher.FindBestMatch(desc.AgentDescription, tx.List(), o.opts.Threshold)
		span.End()

		if ok {
			agent, route, score = match.Agent, RouteReused, match.Score
			logger.Info("reusing agent", "agent", agent.Name, "score", score)
			if o.opts.TrackUsage {
				stamped := agent
				ts := o.timestamp()
				stamped.LastUsed = &ts
				if err := tx.Upsert(stamped); err != nil {
					logger.Warn("failed to record agent usage", "agent", agent.Name, "error", err)
				} else {
					agent = stamped
				}
			}
			return nil
		}

		agent, route = o.create(ctx, logger, desc), RouteCreated
		if err := tx.Upsert(agent); err != nil {
			logger.Error("failed to register agent", "agent", agent.Name, "error", err)
		}
		return nil
	})
	if err != nil {
		// The transaction never started, so nothing was read or written.
		logger.Warn("agent registry unavailable, using fallback agent", "code", domain.ErrorCodeOf(err), "error", err)
		agent, route = domain.FallbackAgentRecord(desc, o.opts.Identity), RouteFallback
	}
	return agent, route, score
}

func (o *Orchestrator) create(ctx context.Context, logger *slog.Logger, desc domain.TaskDescriptor) domain.AgentRecord {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.create",
		trace.WithAttributes(tracer.StringAttr("task_type", desc.TaskType)))
	defer span.End()

	spec, err := o.creator.Create(ctx, desc)
	if err == nil && strings.TrimSpace(spec.Name) == "" {
		err = domain.ErrEmptyResult
	}

	var rec domain.AgentRecord
	if err != nil {
		logger.Warn("agent creation failed, using fallback agent",
			"task_type", desc.TaskType,
			"error", fmt.Errorf("%w: %w", domain.ErrCreationFailed, err))
		tracer.RecordError(span, err)
		rec = domain.FallbackAgentRecord(desc, o.opts.Identity)
	} else {
		spec.Name = domain.SanitizeAgentName(spec.Name)
		rec = domain.NewAgentRecord(spec, desc, o.opts.Identity)
		tracer.SetOK(span)
	}

	ts := o.timestamp()
	rec.CreatedAt = &ts
	logger.Info("created new agent", "agent", rec.Name, "task_type", rec.TaskType)
	return rec
}

func (o *Orchestrator) respond(ctx context.Context, logger *slog.Logger, agent *domain.AgentRecord, request string) string {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.respond")
	defer span.End()

	reply, err := o.responder.Respond(ctx, agent, request)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = domain.ErrEmptyResult
	}
	if err == nil {
		tracer.SetOK(span)
		return reply
	}

	tracer.RecordError(span, err)
	if agent == nil {
		logger.Warn("direct reply failed", "code", domain.ErrorCodeOf(err), "error", err)
		return directFallbackReply
	}
	logger.Warn("delegation failed", "agent", agent.Name,
		"code", domain.ErrorCodeOf(err),
		"error", fmt.Errorf("%w: %w", domain.ErrDelegationFailed, err))
	return DelegationApology(agent.Name)
}

func (o *Orchestrator) timestamp() string {
	return o.now().UTC().Format(time.RFC3339)
}

// DelegationApology is the reply used when the agent named could not answer.
func DelegationApology(name string) string {
	return "I'm sorry, " + name + " was unable to handle your request right now."
}
