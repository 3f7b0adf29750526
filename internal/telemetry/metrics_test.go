package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("chat", "success", 120*time.Millisecond)
	m.RecordRequest("chat", "success", 80*time.Millisecond)
	m.RecordRequest("chat_stream", "provider_error", time.Second)
	m.RecordFrame("sse", "data")
	m.RecordFrame("sse", "data")
	m.RecordFrame("sse", "complete")
	m.RecordTokens("gpt-4o-mini", "prompt", 12)
	m.RecordTokens("gpt-4o-mini", "prompt", 0)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"chat success", testutil.ToFloat64(m.requestsTotal.WithLabelValues("chat", "success")), 2},
		{"stream error", testutil.ToFloat64(m.requestsTotal.WithLabelValues("chat_stream", "provider_error")), 1},
		{"data frames", testutil.ToFloat64(m.framesTotal.WithLabelValues("sse", "data")), 2},
		{"complete frames", testutil.ToFloat64(m.framesTotal.WithLabelValues("sse", "complete")), 1},
		{"prompt tokens", testutil.ToFloat64(m.tokensTotal.WithLabelValues("gpt-4o-mini", "prompt")), 12},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("chat", "success", time.Second)
	m.RecordFrame("sse", "data")
	m.RecordTokens("m", "prompt", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordFrame("ai-sdk", "error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `chatproxy_stream_frames_total{format="ai-sdk",kind="error"} 1`) {
		t.Errorf("metrics output missing frame counter:\n%s", body)
	}
}
