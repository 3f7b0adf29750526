package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

// Format renders stream events into one wire protocol.
type Format interface {
	// Name identifies the format in logs and metrics.
	Name() string

	// ContentType is the response Content-Type for the format.
	ContentType() string

	// Data renders a text delta.
	Data(ev domain.StreamEvent) (string, error)

	// Complete renders the terminal frame of a successful stream.
	Complete() string

	// Error renders the terminal frame of a failed stream.
	Error(message string) string
}

// SSEFormat renders `data: <json>\n\n` envelopes understood by the
// browser client's EventSource-style reader.
type SSEFormat struct{}

func (SSEFormat) Name() string { return "sse" }

func (SSEFormat) ContentType() string { return "text/event-stream" }

func (SSEFormat) Data(ev domain.StreamEvent) (string, error) {
	text, err := jsonString(ev.Text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`data: {"type": "data", "data": `)
	b.WriteString(text)
	if !ev.Metadata.IsZero() {
		meta, err := sseMetadata(ev.Metadata)
		if err != nil {
			return "", err
		}
		b.WriteString(`, "metadata": `)
		b.WriteString(meta)
	}
	b.WriteString("}\n\n")
	return b.String(), nil
}

func (SSEFormat) Complete() string {
	return "data: {\"type\": \"complete\"}\n\n"
}

func (SSEFormat) Error(message string) string {
	msg, err := jsonString(message)
	if err != nil {
		msg = `"stream encoding failed"`
	}
	return `data: {"type": "error", "error": ` + msg + "}\n\n"
}

// sseMetadata renders the metadata object with keys in a fixed order.
func sseMetadata(m *domain.StreamMetadata) (string, error) {
	var fields []string
	add := func(key string, value string) {
		fields = append(fields, `"`+key+`": `+value)
	}

	if m.Model != "" {
		v, err := jsonString(m.Model)
		if err != nil {
			return "", err
		}
		add("model", v)
	}
	if m.FinishReason != "" {
		v, err := jsonString(m.FinishReason)
		if err != nil {
			return "", err
		}
		add("finish_reason", v)
	}
	if m.Total > 0 {
		add("position", strconv.Itoa(m.Position))
		add("total", strconv.Itoa(m.Total))
	}
	return "{" + strings.Join(fields, ", ") + "}", nil
}

// jsonString encodes s as a JSON string literal without HTML escaping.
func jsonString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// AISDKFormat renders the AI SDK data stream protocol: one `<code>:<value>`
// line per part.
type AISDKFormat struct{}

// aiSDKFinish is sent twice: clients key off the second (`e:`) line.
const aiSDKFinish = `{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0}}`

func (AISDKFormat) Name() string { return "ai-sdk" }

func (AISDKFormat) ContentType() string { return "text/plain; charset=utf-8" }

func (AISDKFormat) Data(ev domain.StreamEvent) (string, error) {
	return `0:"` + EscapeAISDK(ev.Text) + "\"\n", nil
}

func (AISDKFormat) Complete() string {
	return "d:" + aiSDKFinish + "\n" + "e:" + aiSDKFinish + "\n"
}

func (AISDKFormat) Error(message string) string {
	return `3:{"error":"` + EscapeAISDK(message) + "\"}\n"
}

// aiSDKEscaper applies the replacements in order: quote, newline, carriage return.
var aiSDKEscaper = strings.NewReplacer(`"`, `\"`, "\n", `\n`, "\r", `\r`)

// EscapeAISDK escapes raw text for an AI SDK string part. Only quotes and line
// breaks are escaped; the input is never JSON-encoded first.
func EscapeAISDK(s string) string {
	return aiSDKEscaper.Replace(s)
}
