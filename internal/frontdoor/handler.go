// Package frontdoor exposes the chat service over HTTP: a JSON endpoint,
// a generic SSE stream and an AI SDK data stream.
package frontdoor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/server"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/stream"
	"github.com/tjfontaine/polyglot-chat-proxy/internal/telemetry"
)

// ChatService answers chat turns.
type ChatService interface {
	ProcessChat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error)
	ProcessChatStream(ctx context.Context, req *domain.ChatRequest) <-chan domain.StreamEvent
}

type Handler struct {
	svc      ChatService
	defaults Defaults
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewHandler creates the chat HTTP handlers. metrics may be nil.
func NewHandler(svc ChatService, defaults Defaults, logger *slog.Logger, metrics *telemetry.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		defaults: defaults,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes mounts the chat API under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/chat/stream", h.HandleChatStream)
		r.Post("/chat/ai-sdk", h.HandleAISDKStream)
		r.Get("/health", h.HandleHealth)
	})
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	req, err := DecodeChatRequest(r.Body, h.defaults)
	if err != nil {
		h.fail(w, r, "chat", start, err)
		return
	}
	server.AddLogField(ctx, "model", req.Model)

	resp, err := h.svc.ProcessChat(ctx, req)
	if err != nil {
		h.fail(w, r, "chat", start, err)
		return
	}

	h.metrics.RecordRequest("chat", outcome(nil), time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeChatRequest(r.Body, h.defaults)
	h.serveStream(w, r, "chat_stream", stream.SSEFormat{}, req, err)
}

func (h *Handler) HandleAISDKStream(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeUIChatRequest(r.Body, h.defaults)
	h.serveStream(w, r, "chat_ai_sdk", stream.AISDKFormat{}, req, err)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// serveStream validates synchronously, then commits to a 200 streaming
// response. From that point failures can only be reported in-band.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, endpoint string, f stream.Format, req *domain.ChatRequest, decodeErr error) {
	start := time.Now()
	if decodeErr != nil {
		h.fail(w, r, endpoint, start, decodeErr)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	server.AddLogField(ctx, "model", req.Model)
	server.AddLogField(ctx, "stream_format", f.Name())

	header := w.Header()
	header.Set("Content-Type", f.ContentType())
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	if _, ok := f.(stream.AISDKFormat); ok {
		header.Set("X-Vercel-AI-Data-Stream", "v1")
	}
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "response writer does not support flushing",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("error", err.Error()),
		)
	}

	events := h.svc.ProcessChatStream(ctx, req)

	result := "disconnected"
	frames := 0
	for frame := range stream.Encode(ctx, events, f) {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Client went away; nobody is left to read the frame.
			break
		}
		if _, err := io.WriteString(w, frame.Text); err != nil {
			server.AddError(ctx, err)
			break
		}
		rc.Flush()

		frames++
		h.metrics.RecordFrame(f.Name(), string(frame.Kind))
		if frame.Terminal() {
			result = string(frame.Kind)
			if frame.Kind == stream.FrameError {
				server.AddLogField(ctx, "stream_error", frame.Text)
			}
		}
	}

	server.AddLogField(ctx, "stream_result", result)
	server.AddLogField(ctx, "stream_frames", strconv.Itoa(frames))
	h.metrics.RecordRequest(endpoint, result, time.Since(start))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, err error) {
	ctx := r.Context()
	apiErr := domain.AsAPIError(err)

	level := slog.LevelWarn
	if apiErr.Type == domain.ErrorTypeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "chat request failed",
		slog.String("request_id", server.GetRequestID(ctx)),
		slog.String("endpoint", endpoint),
		slog.String("error_type", string(apiErr.Type)),
		slog.String("error", apiErr.Error()),
	)
	server.AddError(ctx, apiErr)

	h.metrics.RecordRequest(endpoint, outcome(apiErr), time.Since(start))
	writeError(w, apiErr)
}
