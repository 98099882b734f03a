package domain

import "context"

// Analyzer classifies an incoming request.
type Analyzer interface {
	Analyze(ctx context.Context, request string) (TaskDescriptor, error)
}

// Creator proposes a new specialized agent for a descriptor.
type Creator interface {
	Create(ctx context.Context, desc TaskDescriptor) (AgentSpec, error)
}

// Responder produces the reply text for a request. A nil agent means the
// request is handled directly, without a specialization.
type Responder interface {
	Respond(ctx context.Context, agent *AgentRecord, request string) (string, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, request string) (TaskDescriptor, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, request string) (TaskDescriptor, error) {
	return f(ctx, request)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, desc TaskDescriptor) (AgentSpec, error)

func (f CreatorFunc) Create(ctx context.Context, desc TaskDescriptor) (AgentSpec, error) {
	return f(ctx, desc)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, agent *AgentRecord, request string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, agent *AgentRecord, request string) (string, error) {
	return f(ctx, agent, request)
}
