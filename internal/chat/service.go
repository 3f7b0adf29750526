// Package chat ties prompt assembly and the model gateway together for a
// single chat turn.
package chat

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/prompt"
)

const (
	// DefaultTestModel is the sentinel model id that echoes the message
	// back without calling the provider.
	DefaultTestModel = "response-test"

	testResponsePrefix = "Test response: "
)

// UsageRecorder receives token estimates.
type UsageRecorder interface {
	RecordTokens(model, kind string, n int)
}

// Option configures the service.
type Option func(*Service)

// WithTestModel overrides the sentinel model id.
func WithTestModel(model string) Option {
	return func(s *Service) {
		if model != "" {
			s.testModel = model
		}
	}
}

// WithTokenCounter enables prompt and completion token estimates.
func WithTokenCounter(counter domain.TokenCounter, recorder UsageRecorder) Option {
	return func(s *Service) {
		s.counter = counter
		s.usage = recorder
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service handles chat turns. It holds no per-request state.
type Service struct {
	gateway   domain.ModelGateway
	testModel string
	counter   domain.TokenCounter
	usage     UsageRecorder
	logger    *slog.Logger
}

// NewService creates a chat service backed by gw.
func NewService(gw domain.ModelGateway, opts ...Option) *Service {
	s := &Service{
		gateway:   gw,
		testModel: DefaultTestModel,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTestModel reports whether model short-circuits the gateway.
func (s *Service) IsTestModel(model string) bool {
	return model == s.testModel
}

// ProcessChat answers a chat turn with a single response.
func (s *Service) ProcessChat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if s.IsTestModel(req.Model) {
		return &domain.ChatResponse{Response: testResponsePrefix + req.Message, Model: req.Model}, nil
	}

	messages := prompt.Build(req.Message, req.History, req.SystemPrompt)
	s.record(ctx, req.Model, "prompt", func() (int, error) {
		return s.counter.CountPrompt(req.Model, messages)
	})

	text, err := s.gateway.Complete(ctx, messages, req.Model, req.Temperature)
	if err != nil {
		return nil, domain.AsAPIError(err)
	}

	s.record(ctx, req.Model, "completion", func() (int, error) {
		return s.counter.CountText(req.Model, text)
	})

	return &domain.ChatResponse{Response: text, Model: req.Model}, nil
}

// ProcessChatStream answers a chat turn as a stream of text deltas. Failures
// arrive as the final event; the channel is always closed.
func (s *Service) ProcessChatStream(ctx context.Context, req *domain.ChatRequest) <-chan domain.StreamEvent {
	if s.IsTestModel(req.Model) {
		return echoStream(ctx, req.Model, testResponsePrefix+req.Message)
	}

	messages := prompt.Build(req.Message, req.History, req.SystemPrompt)
	s.record(ctx, req.Model, "prompt", func() (int, error) {
		return s.counter.CountPrompt(req.Model, messages)
	})

	return s.gateway.CompleteStream(ctx, messages, req.Model, req.Temperature)
}

// echoStream emits text one character per event, tagged with its position.
func echoStream(ctx context.Context, model, text string) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent)

	go func() {
		defer close(out)

		total := utf8.RuneCountInString(text)
		position := 0
		for _, r := range text {
			ev := domain.DataEvent(string(r), &domain.StreamMetadata{
				Model:    model,
				Position: position,
				Total:    total,
			})
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			position++
		}
	}()

	return out
}

func (s *Service) record(ctx context.Context, model, kind string, count func() (int, error)) {
	if s.counter == nil {
		return
	}
	n, err := count()
	if err != nil {
		s.logger.DebugContext(ctx, "token count failed", slog.String("model", model), slog.String("error", err.Error()))
		return
	}
	s.logger.DebugContext(ctx, "token estimate", slog.String("model", model), slog.String("kind", kind), slog.Int("tokens", n))
	if s.usage != nil {
		s.usage.RecordTokens(model, kind, n)
	}
}
