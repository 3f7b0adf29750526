// Package gateway wraps the upstream model provider behind a small,
// provider-neutral interface.
package gateway

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	openaiapi "github.com/tjfontaine/polyglot-chat-proxy/internal/api/openai"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

const (
	providerName = "OpenAI"

	// DefaultMaxTokens caps every upstream completion.
	DefaultMaxTokens = 4000

	noResponse = "No response generated"
)

// DefaultModelAliases maps friendly model names to provider model ids.
func DefaultModelAliases() map[string]string {
	return map[string]string{"gemini": "gpt-4o-mini"}
}

var errNoChoices = errors.New("response contained no choices")

// Option configures the gateway.
type Option func(*Gateway)

// WithModelAliases replaces the alias table.
func WithModelAliases(aliases map[string]string) Option {
	return func(g *Gateway) {
		g.aliases = make(map[string]string, len(aliases))
		for k, v := range aliases {
			g.aliases[k] = v
		}
	}
}

// WithMaxTokens sets the max_tokens sent upstream. Zero leaves it unset.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) {
		g.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracerProvider sets the tracer provider used for upstream spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		g.tracer = tp.Tracer("polyglot-chat-proxy/gateway")
	}
}

// Gateway implements domain.ModelGateway on top of the OpenAI Chat
// Completions API. Its configuration is read-only after New; one Gateway
// serves every request.
type Gateway struct {
	client    *openaiapi.Client
	aliases   map[string]string
	maxTokens int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates a gateway around client.
func New(client *openaiapi.Client, opts ...Option) *Gateway {
	g := &Gateway{
		client:    client,
		aliases:   DefaultModelAliases(),
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
		tracer:    otel.Tracer("polyglot-chat-proxy/gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string {
	return "openai"
}

// ResolveModel applies the alias table to a requested model id.
func (g *Gateway) ResolveModel(model string) string {
	if target, ok := g.aliases[model]; ok {
		return target
	}
	return model
}

// Complete returns the full completion text for prompt.
func (g *Gateway) Complete(ctx context.Context, prompt []domain.PromptMessage, model string, temperature float32) (string, error) {
	req := g.toAPIRequest(prompt, model, temperature)

	ctx, span := g.startSpan(ctx, "gateway.Complete", req)
	defer span.End()

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", g.fail(ctx, span, err)
	}
	if len(resp.Choices) == 0 {
		return "", g.fail(ctx, span, errNoChoices)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		content = noResponse
	}

	span.SetAttributes(
		attribute.String("llm.finish_reason", resp.Choices[0].FinishReason),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}

// CompleteStream streams the completion for prompt. The upstream request is
// issued lazily inside the returned stream; every failure, including one
// before the first chunk, arrives as a final error event.
func (g *Gateway) CompleteStream(ctx context.Context, prompt []domain.PromptMessage, model string, temperature float32) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent)

	go func() {
		defer close(out)

		req := g.toAPIRequest(prompt, model, temperature)
		ctx, span := g.startSpan(ctx, "gateway.CompleteStream", req)
		defer span.End()

		send := func(ev domain.StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream, err := g.client.StreamChatCompletion(ctx, req)
		if err != nil {
			send(domain.ErrorEvent(g.fail(ctx, span, err)))
			return
		}

		chunks := 0
		for result := range stream {
			if result.Err != nil {
				send(domain.ErrorEvent(g.fail(ctx, span, result.Err)))
				return
			}

			chunk := result.Chunk
			// The usage-only trailer has no choices.
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			meta := &domain.StreamMetadata{Model: chunk.Model}
			if choice.FinishReason != nil {
				meta.FinishReason = *choice.FinishReason
			}

			if !send(domain.DataEvent(choice.Delta.Content, meta)) {
				break
			}
			chunks++
		}

		span.SetAttributes(attribute.Int("llm.stream.chunks", chunks))
		if err := ctx.Err(); err != nil {
			g.logger.DebugContext(ctx, "upstream stream stopped", slog.String("reason", err.Error()))
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return out
}

// toAPIRequest converts a prompt to an OpenAI API request, applying the
// alias table.
func (g *Gateway) toAPIRequest(prompt []domain.PromptMessage, model string, temperature float32) *openaiapi.ChatCompletionRequest {
	messages := make([]openaiapi.ChatCompletionMessage, len(prompt))
	for i, m := range prompt {
		messages[i] = openaiapi.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	return &openaiapi.ChatCompletionRequest{
		Model:       g.ResolveModel(model),
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: &temperature,
	}
}

func (g *Gateway) startSpan(ctx context.Context, name string, req *openaiapi.ChatCompletionRequest) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", g.Name()),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.prompt.messages", len(req.Messages)),
		),
	)
}

// fail records err on the span and converts it to a provider error.
func (g *Gateway) fail(ctx context.Context, span trace.Span, err error) *domain.APIError {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.logger.WarnContext(ctx, "upstream call failed", slog.String("provider", g.Name()), slog.String("error", err.Error()))
	return domain.ErrProvider(providerName, err)
}
