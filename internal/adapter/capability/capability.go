// Package capability implements the orchestrator's Analyzer, Creator and
// Responder on top of a chat LLM provider.
package capability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"agentjungle/internal/domain"
)

// Options tunes the LLM calls.
type Options struct {
	Identity    string  // name the direct prompt speaks as
	Model       string  // empty uses the provider's default model
	MaxTokens   int     // 0 leaves the provider default
	Temperature float64 // 0 leaves the provider default
}

// Client is an LLM-backed domain.Analyzer, domain.Creator and domain.Responder.
type Client struct {
	provider domain.LLMProvider
	opts     Options
	logger   *slog.Logger
}

var (
	_ domain.Analyzer  = (*Client)(nil)
	_ domain.Creator   = (*Client)(nil)
	_ domain.Responder = (*Client)(nil)
)

// New creates a Client over provider.
func New(provider domain.LLMProvider, opts Options, logger *slog.Logger) *Client {
	if opts.Identity == "" {
		opts.Identity = "MasterAgent"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{provider: provider, opts: opts, logger: logger}
}

// Analyze classifies request. The model's JSON must carry task_type,
// agent_description and a boolean requires_delegation.
func (c *Client) Analyze(ctx context.Context, request string) (domain.TaskDescriptor, error) {
	raw, err := c.chat(ctx, "", analysisPrompt(request), true)
	if err != nil {
		return domain.TaskDescriptor{}, domain.WrapOp("capability.Analyze", err)
	}

	var desc domain.TaskDescriptor
	if err := decodeJSON(raw, analysisValidator, &desc); err != nil {
		c.logger.Debug("unusable analysis output", "output", domain.Truncate(raw, 200), "error", err)
		return domain.TaskDescriptor{}, domain.WrapOp("capability.Analyze", err)
	}
	return desc, nil
}

// Create asks the model to design a specialist for desc.
func (c *Client) Create(ctx context.Context, desc domain.TaskDescriptor) (domain.AgentSpec, error) {
	raw, err := c.chat(ctx, "", creationPrompt(desc), true)
	if err != nil {
		return domain.AgentSpec{}, domain.WrapOp("capability.Create", err)
	}

	var spec domain.AgentSpec
	if err := decodeJSON(raw, agentSpecValidator, &spec); err != nil {
		c.logger.Debug("unusable creation output", "output", domain.Truncate(raw, 200), "error", err)
		return domain.AgentSpec{}, domain.WrapOp("capability.Create", err)
	}
	return spec, nil
}

// Respond answers request as agent, or directly when agent is nil. The
// agent's system prompt is sent as the system message.
func (c *Client) Respond(ctx context.Context, agent *domain.AgentRecord, request string) (string, error) {
	var (
		system, prompt string
		op             = "capability.Respond"
	)
	if agent == nil {
		prompt = directPrompt(c.opts.Identity, request)
	} else {
		system = agent.SystemPrompt
		prompt = delegationPrompt(*agent, request)
		op += "(" + agent.Name + ")"
	}

	reply, err := c.chat(ctx, system, prompt, false)
	if err != nil {
		return "", domain.WrapOp(op, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", domain.WrapOp(op, domain.ErrEmptyResult)
	}
	return reply, nil
}

func (c *Client) chat(ctx context.Context, system, prompt string, jsonOutput bool) (string, error) {
	msgs := make([]domain.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: system})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: prompt})

	resp, err := c.provider.Chat(ctx, domain.ChatRequest{
		Model:       c.opts.Model,
		Messages:    msgs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSONOutput:  jsonOutput,
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
