package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestNewServer_Routes(t *testing.T) {
	cfg := testConfig(t)
	srv := newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"health", "GET", "/api/v1/health", "", 200, `{"status":"healthy"}`},
		{"chat test mode", "POST", "/api/v1/chat", `{"message":"hi","model":"response-test"}`, 200, `"response":"Test response: hi"`},
		{"stream test mode", "POST", "/api/v1/chat/stream", `{"message":"a","model":"response-test"}`, 200, `data: {"type": "complete"}`},
		{"ai sdk test mode", "POST", "/api/v1/chat/ai-sdk", `{"messages":[{"role":"user","content":"a"}],"model":"response-test"}`, 200, `0:"a"`},
		{"validation", "POST", "/api/v1/chat", `{"message":""}`, 400, `"error":"Invalid request data"`},
		{"metrics", "GET", "/metrics", "", 200, "chatproxy_requests_total"},
		{"unknown route", "GET", "/api/v2/chat", "", 404, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestNewServer_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.Metrics = false
	srv := newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider())

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn"})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("log output = %s", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(buf.String(), "chatproxy "+Version) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestServeCommandFlags(t *testing.T) {
	for _, name := range []string{"port", "log-level", "dry-run"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("serve flag %q not registered", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("root flag config not registered")
	}
}
