package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"agentjungle/internal/domain"
	"agentjungle/internal/usecase/registry"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *registry.FileStore {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "agents.json"), nil)
	require.NoError(t, err)
	return store
}

func delegating(taskType, description string) domain.AnalyzerFunc {
	return func(context.Context, string) (domain.TaskDescriptor, error) {
		return domain.TaskDescriptor{
			TaskType:           taskType,
			AgentDescription:   description,
			Complexity:         domain.ComplexityComplex,
			RequiresDelegation: true,
		}, nil
	}
}

// recordingResponder remembers which agent each call was routed to.
type recordingResponder struct {
	mu     sync.Mutex
	agents []string
	reply  string
	err    error
}

func (r *recordingResponder) Respond(_ context.Context, agent *domain.AgentRecord, request string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := ""
	if agent != nil {
		name = agent.Name
	}
	r.agents = append(r.agents, name)
	if r.err != nil {
		return "", r.err
	}
	if r.reply != "" {
		return r.reply, nil
	}
	return fmt.Sprintf("[%s] %s", name, request), nil
}

func failingCreator(calls *atomic.Int32) domain.CreatorFunc {
	return func(context.Context, domain.TaskDescriptor) (domain.AgentSpec, error) {
		if calls != nil {
			calls.Add(1)
		}
		return domain.AgentSpec{}, errors.New("model unavailable")
	}
}

func newTestOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Now == nil {
		deps.Now = func() time.Time { return fixedNow }
	}
	return New(deps, opts)
}

func TestHandleBlankRequestIsAnalyzed(t *testing.T) {
	var analyzed []string
	responder := &recordingResponder{}
	o := newTestOrchestrator(Deps{
		Analyzer: domain.AnalyzerFunc(func(_ context.Context, req string) (domain.TaskDescriptor, error) {
			analyzed = append(analyzed, req)
			return domain.DefaultTaskDescriptor(), nil
		}),
		Responder: responder,
		Store:     newTestStore(t),
	}, DefaultOptions())

	res := o.Handle(context.Background(), "   ")
	assert.Equal(t, []string{"   "}, analyzed)
	assert.Equal(t, RouteDirect, res.Route)
	assert.Equal(t, []string{""}, responder.agents)
	assert.NotEmpty(t, res.RequestID)
}

// errorLog keeps the "error" attribute of every record logged.
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) Enabled(context.Context, slog.Level) bool { return true }

func (l *errorLog) Handle(_ context.Context, r slog.Record) error {
	r.Attrs(func(a slog.Attr) bool {
		if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
			l.mu.Lock()
			l.errs = append(l.errs, err)
			l.mu.Unlock()
		}
		return true
	})
	return nil
}

func (l *errorLog) WithAttrs([]slog.Attr) slog.Handler { return l }
func (l *errorLog) WithGroup(string) slog.Handler { return l }

func (l *errorLog) has(target error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, err := range l.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestFailuresAreClassified(t *testing.T) {
	cause := errors.New("model unavailable")
	logs := &errorLog{}
	o := newTestOrchestrator(Deps{
		Analyzer: domain.AnalyzerFunc(func(context.Context, string) (domain.TaskDescriptor, error) {
			return domain.TaskDescriptor{}, cause
		}),
		Responder: &recordingResponder{err: cause},
		Store:     newTestStore(t),
		Logger:    slog.New(logs),
	}, DefaultOptions())
	o.Handle(context.Background(), "hello")
	assert.True(t, logs.has(domain.ErrAnalysisFailed))
	assert.True(t, logs.has(cause))

	logs = &errorLog{}
	o = newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "arithmetic helper"),
		Creator:   failingCreator(nil),
		Responder: &recordingResponder{err: cause},
		Store:     newTestStore(t),
		Logger:    slog.New(logs),
	}, DefaultOptions())
	o.Handle(context.Background(), "2+2")
	assert.True(t, logs.has(domain.ErrCreationFailed))
	assert.True(t, logs.has(domain.ErrDelegationFailed))
	assert.False(t, logs.has(domain.ErrAnalysisFailed))
}

func TestAnalyzerFailureFallsBackToDirect(t *testing.T) {
	cases := map[string]domain.AnalyzerFunc{
		"error": func(context.Context, string) (domain.TaskDescriptor, error) {
			return domain.TaskDescriptor{}, errors.New("bad json")
		},
		"empty descriptor": func(context.Context, string) (domain.TaskDescriptor, error) {
			return domain.TaskDescriptor{RequiresDelegation: true}, nil
		},
	}
	for name, analyzer := range cases {
		t.Run(name, func(t *testing.T) {
			responder := &recordingResponder{}
			o := newTestOrchestrator(Deps{
				Analyzer:  analyzer,
				Creator:   failingCreator(nil),
				Responder: responder,
				Store:     newTestStore(t),
			}, DefaultOptions())

			res := o.Handle(context.Background(), "hello there")
			assert.Equal(t, domain.DefaultTaskDescriptor(), res.Descriptor)
			assert.Equal(t, RouteDirect, res.Route)
			assert.Nil(t, res.Agent)
			assert.Equal(t, "[] hello there", res.Reply)
			assert.Equal(t, []string{""}, responder.agents)
		})
	}
}

func TestDirectResponderFailure(t *testing.T) {
	for _, responder := range []*recordingResponder{
		{err: errors.New("timeout")},
		{reply: "   "},
	} {
		o := newTestOrchestrator(Deps{
			Analyzer: domain.AnalyzerFunc(func(context.Context, string) (domain.TaskDescriptor, error) {
				return domain.DefaultTaskDescriptor(), nil
			}),
			Responder: responder,
			Store:     newTestStore(t),
		}, DefaultOptions())

		assert.Equal(t, "I'm unable to process your request at the moment.",
			o.Process(context.Background(), "what time is it"))
	}
}

func TestCreatorFailureFallbackIsPersistedAndReused(t *testing.T) {
	store := newTestStore(t)
	var creates atomic.Int32
	responder := &recordingResponder{}
	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "arithmetic helper"),
		Creator:   failingCreator(&creates),
		Responder: responder,
		Store:     store,
	}, DefaultOptions())
	ctx := context.Background()

	first := o.Handle(ctx, "what is 2+2")
	require.NotNil(t, first.Agent)
	assert.Equal(t, RouteCreated, first.Route)
	assert.Equal(t, "mathAgent", first.Agent.Name)
	assert.Equal(t, "arithmetic helper", first.Agent.Description)
	assert.Equal(t, "math", first.Agent.TaskType)
	assert.Equal(t, DefaultIdentity, first.Agent.CreatedBy)
	assert.Equal(t, "You are a helpful assistant specializing in math.", first.Agent.SystemPrompt)
	require.NotNil(t, first.Agent.CreatedAt)
	assert.Equal(t, "2025-06-01T12:00:00Z", *first.Agent.CreatedAt)

	stored, err := store.Get(ctx, "mathAgent")
	require.NoError(t, err)
	assert.Equal(t, *first.Agent, stored)

	second := o.Handle(ctx, "what is 3+3")
	require.NotNil(t, second.Agent)
	assert.Equal(t, RouteReused, second.Route)
	assert.Equal(t, "mathAgent", second.Agent.Name)
	assert.Greater(t, second.Score, 0.09)

	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, []string{"mathAgent", "mathAgent"}, responder.agents)
	agents, _ := store.List(ctx)
	assert.Len(t, agents, 1)
}

func TestCreatorEmptyNameUsesFallback(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Analyzer: delegating("legal", "contract reviewer"),
		Creator: domain.CreatorFunc(func(context.Context, domain.TaskDescriptor) (domain.AgentSpec, error) {
			return domain.AgentSpec{Name: "  ", Description: "ignored"}, nil
		}),
		Responder: &recordingResponder{},
		Store:     newTestStore(t),
	}, DefaultOptions())

	res := o.Handle(context.Background(), "review this NDA")
	require.NotNil(t, res.Agent)
	assert.Equal(t, "legalAgent", res.Agent.Name)
	assert.Equal(t, "contract reviewer", res.Agent.Description)
}

func TestCreatorOutputIsSanitizedAndStamped(t *testing.T) {
	store := newTestStore(t)
	o := newTestOrchestrator(Deps{
		Analyzer: delegating("creative", "writes poems"),
		Creator: domain.CreatorFunc(func(_ context.Context, desc domain.TaskDescriptor) (domain.AgentSpec, error) {
			return domain.AgentSpec{Name: "Poem Smith!", SystemPrompt: "You write verse."}, nil
		}),
		Responder: &recordingResponder{},
		Store:     store,
	}, Options{Identity: "Coordinator", Threshold: 0.09})

	res := o.Handle(context.Background(), "a haiku about rain")
	require.NotNil(t, res.Agent)
	assert.Equal(t, "PoemSmith", res.Agent.Name)
	assert.Equal(t, "writes poems", res.Agent.Description)
	assert.Equal(t, "creative", res.Agent.TaskType)
	assert.Equal(t, "You write verse.", res.Agent.SystemPrompt)
	assert.Equal(t, "Coordinator", res.Agent.CreatedBy)
	require.NotNil(t, res.Agent.CreatedAt)
	assert.Nil(t, res.Agent.LastUsed)

	_, err := store.Get(context.Background(), "PoemSmith")
	assert.NoError(t, err)
}

func TestUnrelatedRequestCreatesNewAgent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.AgentRecord{
		Name: "PoemAgent", Description: "writes poems", TaskType: "creative",
	}))

	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("database", "optimize a SQL database index"),
		Creator:   failingCreator(nil),
		Responder: &recordingResponder{},
		Store:     store,
	}, DefaultOptions())

	res := o.Handle(ctx, "my query is slow")
	assert.Equal(t, RouteCreated, res.Route)
	assert.Equal(t, "databaseAgent", res.Agent.Name)

	agents, _ := store.List(ctx)
	require.Len(t, agents, 2)
	assert.Equal(t, "PoemAgent", agents[0].Name)
}

func TestDelegationFailureApologizes(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "arithmetic helper"),
		Creator:   failingCreator(nil),
		Responder: &recordingResponder{err: errors.New("503")},
		Store:     newTestStore(t),
	}, DefaultOptions())

	assert.Equal(t, "I'm sorry, mathAgent was unable to handle your request right now.",
		o.Process(context.Background(), "what is 2+2"))
}

func TestTrackUsageStampsLastUsed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.AgentRecord{
		Name: "MathAgent", Description: "solves algebra and equations", TaskType: "math",
	}))

	opts := DefaultOptions()
	opts.TrackUsage = true
	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "algebra equation solver"),
		Creator:   failingCreator(nil),
		Responder: &recordingResponder{},
		Store:     store,
	}, opts)

	res := o.Handle(ctx, "solve x^2 = 4")
	assert.Equal(t, RouteReused, res.Route)
	require.NotNil(t, res.Agent.LastUsed)
	assert.Equal(t, "2025-06-01T12:00:00Z", *res.Agent.LastUsed)

	stored, err := store.Get(ctx, "MathAgent")
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsed)
}

func TestReuseWithoutTrackUsageLeavesRecordUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	orig := domain.AgentRecord{Name: "MathAgent", Description: "solves algebra and equations", TaskType: "math"}
	require.NoError(t, store.Upsert(ctx, orig))

	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "algebra equation solver"),
		Creator:   failingCreator(nil),
		Responder: &recordingResponder{},
		Store:     store,
	}, DefaultOptions())

	res := o.Handle(ctx, "solve x")
	assert.Equal(t, RouteReused, res.Route)
	stored, _ := store.Get(ctx, "MathAgent")
	assert.Equal(t, orig, stored)
}

// brokenStore accepts reads but fails every write.
type brokenStore struct {
	domain.AgentStore
	transactErr error
}

func (b brokenStore) Transact(ctx context.Context, fn func(domain.AgentTx) error) error {
	if b.transactErr != nil {
		return b.transactErr
	}
	return fn(brokenTx{})
}

type brokenTx struct{}

func (brokenTx) List() []domain.AgentRecord { return nil }
func (brokenTx) Upsert(domain.AgentRecord) error {
	return domain.StorageIOError("test", errors.New("disk full"))
}

func TestUpsertFailureStillDelegates(t *testing.T) {
	responder := &recordingResponder{}
	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "arithmetic helper"),
		Creator:   failingCreator(nil),
		Responder: responder,
		Store:     brokenStore{},
	}, DefaultOptions())

	res := o.Handle(context.Background(), "2+2")
	assert.Equal(t, RouteCreated, res.Route)
	assert.Equal(t, "[mathAgent] 2+2", res.Reply)
}

func TestTransactErrorUsesFallbackAgent(t *testing.T) {
	var creates atomic.Int32
	o := newTestOrchestrator(Deps{
		Analyzer:  delegating("math", "arithmetic helper"),
		Creator:   failingCreator(&creates),
		Responder: &recordingResponder{},
		Store:     brokenStore{transactErr: context.Canceled},
	}, DefaultOptions())

	res := o.Handle(context.Background(), "2+2")
	assert.Equal(t, RouteFallback, res.Route)
	require.NotNil(t, res.Agent)
	assert.Equal(t, "mathAgent", res.Agent.Name)
	assert.Equal(t, "[mathAgent] 2+2", res.Reply)
	assert.Zero(t, creates.Load())
}

func TestConcurrentRequestsCreateOneAgent(t *testing.T) {
	store := newTestStore(t)
	var creates atomic.Int32
	o := newTestOrchestrator(Deps{
		Analyzer: delegating("sql", "optimizes SQL database indexes"),
		Creator: domain.CreatorFunc(func(context.Context, domain.TaskDescriptor) (domain.AgentSpec, error) {
			n := creates.Add(1)
			time.Sleep(5 * time.Millisecond)
			return domain.AgentSpec{Name: fmt.Sprintf("IndexTuner%d", n)}, nil
		}),
		Responder: &recordingResponder{},
		Store:     store,
	}, DefaultOptions())

	var g errgroup.Group
	results := make([]Result, 10)
	for i := range results {
		g.Go(func() error {
			results[i] = o.Handle(context.Background(), "speed up my query")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), creates.Load())
	agents, _ := store.List(context.Background())
	require.Len(t, agents, 1)

	var created int
	for _, r := range results {
		require.NotNil(t, r.Agent)
		assert.Equal(t, agents[0].Name, r.Agent.Name)
		if r.Route == RouteCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestRequestIDsAreUnique(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Analyzer: domain.AnalyzerFunc(func(context.Context, string) (domain.TaskDescriptor, error) {
			return domain.DefaultTaskDescriptor(), nil
		}),
		Responder: &recordingResponder{},
		Store:     newTestStore(t),
	}, DefaultOptions())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id := o.Handle(context.Background(), "hi").RequestID
		assert.False(t, seen[id])
		seen[id] = true
	}
}
