package stream

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

// feed returns a closed channel pre-loaded with events.
func feed(events ...domain.StreamEvent) <-chan domain.StreamEvent {
	ch := make(chan domain.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func texts(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Text
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEncode_SSE(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.DataEvent("x", nil),
		domain.DataEvent("y", nil),
	), SSEFormat{}))

	want := []string{
		"data: {\"type\": \"data\", \"data\": \"x\"}\n\n",
		"data: {\"type\": \"data\", \"data\": \"y\"}\n\n",
		"data: {\"type\": \"complete\"}\n\n",
	}
	if got := texts(frames); !equalStrings(got, want) {
		t.Errorf("frames = %q, want %q", got, want)
	}
	if frames[2].Kind != FrameComplete {
		t.Errorf("last frame kind = %s, want complete", frames[2].Kind)
	}
}

func TestEncode_ErrorIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   []string
	}{
		{
			name:   "sse",
			format: SSEFormat{},
			want: []string{
				"data: {\"type\": \"data\", \"data\": \"x\"}\n\n",
				"data: {\"type\": \"error\", \"error\": \"boom\"}\n\n",
			},
		},
		{
			name:   "ai-sdk",
			format: AISDKFormat{},
			want: []string{
				"0:\"x\"\n",
				"3:{\"error\":\"boom\"}\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := Collect(Encode(context.Background(), feed(
				domain.DataEvent("x", nil),
				domain.ErrorEvent(errors.New("boom")),
				domain.DataEvent("never", nil),
			), tt.format))

			if got := texts(frames); !equalStrings(got, tt.want) {
				t.Errorf("frames = %q, want %q", got, tt.want)
			}
			for _, f := range frames {
				if f.Kind == FrameComplete {
					t.Error("complete frame emitted after an error")
				}
			}
		})
	}
}

func TestEncode_StopsReadingAfterError(t *testing.T) {
	events := make(chan domain.StreamEvent, 3)
	events <- domain.ErrorEvent(errors.New("boom"))
	events <- domain.DataEvent("left behind", nil)

	frames := Collect(Encode(context.Background(), events, SSEFormat{}))
	if len(frames) != 1 || frames[0].Kind != FrameError {
		t.Fatalf("frames = %+v, want a single error frame", frames)
	}
	if len(events) != 1 {
		t.Errorf("encoder consumed %d events past the error", 1-len(events))
	}
}

func TestEncode_ErrorOnFirstEvent(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.ErrorEvent(domain.ErrProvider("OpenAI", errors.New("connection refused"))),
	), SSEFormat{}))

	want := []string{"data: {\"type\": \"error\", \"error\": \"OpenAI API error: connection refused\"}\n\n"}
	if got := texts(frames); !equalStrings(got, want) {
		t.Errorf("frames = %q, want %q", got, want)
	}
}

func TestEncode_EmptyStream(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(), AISDKFormat{}))

	want := []string{
		"d:{\"finishReason\":\"stop\",\"usage\":{\"promptTokens\":0,\"completionTokens\":0}}\n" +
			"e:{\"finishReason\":\"stop\",\"usage\":{\"promptTokens\":0,\"completionTokens\":0}}\n",
	}
	if got := texts(frames); !equalStrings(got, want) {
		t.Errorf("frames = %q, want %q", got, want)
	}
}

func TestEncode_SkipsEmptyDeltas(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.DataEvent("", &domain.StreamMetadata{Model: "gpt-4o-mini"}),
		domain.DataEvent("a", nil),
		domain.DataEvent("", &domain.StreamMetadata{FinishReason: "stop"}),
	), AISDKFormat{}))

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %q", len(frames), texts(frames))
	}
	if frames[0].Text != "0:\"a\"\n" {
		t.Errorf("data frame = %q", frames[0].Text)
	}
}

func TestEncode_Metadata(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.DataEvent("a", &domain.StreamMetadata{Position: 0, Total: 2}),
		domain.DataEvent("b", &domain.StreamMetadata{Model: "gpt-4o-mini", FinishReason: "stop"}),
	), SSEFormat{}))

	want := []string{
		"data: {\"type\": \"data\", \"data\": \"a\", \"metadata\": {\"position\": 0, \"total\": 2}}\n\n",
		"data: {\"type\": \"data\", \"data\": \"b\", \"metadata\": {\"model\": \"gpt-4o-mini\", \"finish_reason\": \"stop\"}}\n\n",
		"data: {\"type\": \"complete\"}\n\n",
	}
	if got := texts(frames); !equalStrings(got, want) {
		t.Errorf("frames = %q, want %q", got, want)
	}
}

func TestEncode_AISDKEscaping(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.DataEvent("say \"hi\"\nthen\r\nbye", nil),
	), AISDKFormat{}))

	want := "0:\"say \\\"hi\\\"\\nthen\\r\\nbye\"\n"
	if frames[0].Text != want {
		t.Errorf("frame = %q, want %q", frames[0].Text, want)
	}
	if strings.Contains(frames[0].Text, `\\`) {
		t.Errorf("frame is double-escaped: %q", frames[0].Text)
	}
}

func TestEncode_SSEEscaping(t *testing.T) {
	frames := Collect(Encode(context.Background(), feed(
		domain.DataEvent("<b>\"q\"\n</b>", nil),
	), SSEFormat{}))

	want := "data: {\"type\": \"data\", \"data\": \"<b>\\\"q\\\"\\n</b>\"}\n\n"
	if frames[0].Text != want {
		t.Errorf("frame = %q, want %q", frames[0].Text, want)
	}
}

type brokenFormat struct {
	SSEFormat
	panics bool
}

func (b brokenFormat) Data(domain.StreamEvent) (string, error) {
	if b.panics {
		panic("renderer exploded")
	}
	return "", errors.New("unsupported value")
}

func TestEncode_RenderFailureBecomesErrorFrame(t *testing.T) {
	for _, panics := range []bool{false, true} {
		frames := Collect(Encode(context.Background(), feed(
			domain.DataEvent("x", nil),
			domain.DataEvent("y", nil),
		), brokenFormat{panics: panics}))

		if len(frames) != 1 || frames[0].Kind != FrameError {
			t.Fatalf("panics=%v: frames = %+v, want a single error frame", panics, frames)
		}
		if !strings.Contains(frames[0].Text, "encode sse frame") {
			t.Errorf("panics=%v: error frame = %q", panics, frames[0].Text)
		}
	}
}

func TestEncode_ConsumerStopsEarly(t *testing.T) {
	events := make(chan domain.StreamEvent, 3)
	events <- domain.DataEvent("a", nil)
	events <- domain.DataEvent("b", nil)
	events <- domain.DataEvent("c", nil)
	close(events)

	var got []Frame
	for f := range Encode(context.Background(), events, SSEFormat{}) {
		got = append(got, f)
		break
	}

	if len(got) != 1 {
		t.Fatalf("got %d frames", len(got))
	}
	if len(events) != 2 {
		t.Errorf("encoder read ahead: %d events left, want 2", len(events))
	}
}

func TestEncode_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Never closed: only the context can end the stream.
	events := make(chan domain.StreamEvent)

	done := make(chan []Frame)
	go func() { done <- Collect(Encode(ctx, events, AISDKFormat{})) }()

	select {
	case frames := <-done:
		if len(frames) != 1 || frames[0].Kind != FrameError {
			t.Fatalf("frames = %+v, want a single error frame", frames)
		}
		if !strings.Contains(frames[0].Text, "deadline exceeded") {
			t.Errorf("error frame = %q", frames[0].Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("encoder did not stop on context cancellation")
	}
}

func TestEscapeAISDK(t *testing.T) {
	tests := map[string]string{
		"plain":      "plain",
		`a "quote"`:  `a \"quote\"`,
		"line\nnext": `line\nnext`,
		"cr\r":       `cr\r`,
		`back\slash`: `back\slash`,
	}
	for in, want := range tests {
		if got := EscapeAISDK(in); got != want {
			t.Errorf("EscapeAISDK(%q) = %q, want %q", in, got, want)
		}
	}
}
