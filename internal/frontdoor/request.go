package frontdoor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

// maxBodyBytes bounds request bodies; a message is at most 10000 characters
// but history can add considerably more.
const maxBodyBytes = 4 << 20

// msgNoJSON is the error message for an absent, null or empty JSON object body.
const msgNoJSON = "No JSON data provided"

func errNoJSON() *domain.APIError {
	return domain.ErrValidation(msgNoJSON)
}

// Defaults fill fields the payload leaves out.
type Defaults struct {
	Model        string
	SystemPrompt string
	Temperature  float32
}

// ChatPayload is the body of the chat endpoints. Pointer fields distinguish
// "absent" from an explicit zero value.
type ChatPayload struct {
	Message      string           `json:"message"`
	History      []domain.Message `json:"history"`
	Model        *string          `json:"model"`
	SystemPrompt *string          `json:"system_prompt"`
	Temperature  *float32         `json:"temperature"`
}

// UIMessage is a message in the shape sent by AI SDK chat clients.
type UIMessage struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Parts     []UIPart `json:"parts"`
	CreatedAt string   `json:"createdAt"`
}

// UIPart is one part of a UIMessage. Only text parts carry content.
type UIPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text returns the message content, falling back to its concatenated text parts.
func (m UIMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// UIChatPayload is the AI SDK request body.
type UIChatPayload struct {
	Messages     []UIMessage `json:"messages"`
	Model        *string     `json:"model"`
	SystemPrompt *string     `json:"system_prompt"`
	Temperature  *float32    `json:"temperature"`
}

// DecodeChatRequest reads a ChatPayload from body, applies defaults and
// validates the result.
func DecodeChatRequest(body io.Reader, defaults Defaults) (*domain.ChatRequest, error) {
	var payload ChatPayload
	if err := decodeJSON(body, &payload); err != nil {
		return nil, err
	}
	return payload.toRequest(defaults)
}

// DecodeUIChatRequest reads either an AI SDK message list or a plain
// ChatPayload from body.
func DecodeUIChatRequest(body io.Reader, defaults Defaults) (*domain.ChatRequest, error) {
	raw, err := readBody(body)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := decodeJSON(bytes.NewReader(raw), &probe); err != nil {
		return nil, err
	}
	if len(probe.Messages) == 0 || string(probe.Messages) == "null" {
		return DecodeChatRequest(bytes.NewReader(raw), defaults)
	}

	var payload UIChatPayload
	if err := decodeJSON(bytes.NewReader(raw), &payload); err != nil {
		return nil, err
	}
	return FromUIMessages(payload, defaults)
}

// FromUIMessages converts an AI SDK message list into a chat request. The
// last user message becomes the new message and the user and assistant
// messages before it become history; anything after it is dropped. History
// entries without an id or createdAt get their position and the current time.
func FromUIMessages(payload UIChatPayload, defaults Defaults) (*domain.ChatRequest, error) {
	if len(payload.Messages) == 0 {
		return nil, invalid(domain.FieldError{
			Loc:  []string{"messages"},
			Msg:  "List should have at least 1 item after validation, not 0",
			Type: "too_short",
		})
	}

	last := -1
	for i := len(payload.Messages) - 1; i >= 0; i-- {
		if payload.Messages[i].Role == string(domain.RoleUser) {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, invalid(domain.FieldError{
			Loc:  []string{"messages"},
			Msg:  "At least one message should be from the user",
			Type: "value_error",
		})
	}

	now := time.Now().UnixMilli()
	history := make([]domain.Message, 0, last)
	for i, m := range payload.Messages[:last] {
		role := domain.Role(m.Role)
		if role != domain.RoleUser && role != domain.RoleAssistant {
			continue
		}
		id := m.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		history = append(history, domain.Message{
			ID:        id,
			Content:   m.Text(),
			Role:      role,
			Timestamp: timestampMillis(m.CreatedAt, now),
		})
	}

	req := &domain.ChatRequest{
		Message: payload.Messages[last].Text(),
		History: history,
	}
	applyDefaults(req, payload.Model, payload.SystemPrompt, payload.Temperature, defaults)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (p ChatPayload) toRequest(defaults Defaults) (*domain.ChatRequest, error) {
	req := &domain.ChatRequest{
		Message: p.Message,
		History: p.History,
	}
	if req.History == nil {
		req.History = []domain.Message{}
	}
	applyDefaults(req, p.Model, p.SystemPrompt, p.Temperature, defaults)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func applyDefaults(req *domain.ChatRequest, model, systemPrompt *string, temperature *float32, d Defaults) {
	req.Model = d.Model
	if model != nil {
		req.Model = *model
	}
	req.SystemPrompt = d.SystemPrompt
	if systemPrompt != nil {
		req.SystemPrompt = *systemPrompt
	}
	req.Temperature = d.Temperature
	if temperature != nil {
		req.Temperature = *temperature
	}
}

// timestampMillis parses an RFC 3339 createdAt value, falling back to now.
func timestampMillis(createdAt string, now int64) int64 {
	if createdAt == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return now
	}
	return t.UnixMilli()
}

func readBody(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, domain.ErrValidation("Invalid request data").WithCause(err)
	}
	if len(raw) > maxBodyBytes {
		return nil, invalid(domain.FieldError{
			Loc:  []string{"body"},
			Msg:  fmt.Sprintf("Request body exceeds %d bytes", maxBodyBytes),
			Type: "too_long",
		})
	}
	return raw, nil
}

func decodeJSON(body io.Reader, v any) error {
	raw, err := readBody(body)
	if err != nil {
		return err
	}

	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}":
		return errNoJSON()
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = strings.Split(typeErr.Field, ".")
		}
		return invalid(domain.FieldError{
			Loc:  loc,
			Msg:  "Input should be a valid " + jsonKind(typeErr.Type.Kind().String()),
			Type: "type_error",
		}).WithCause(err)
	}
	return invalid(domain.FieldError{
		Loc:  []string{"body"},
		Msg:  "Invalid JSON: " + err.Error(),
		Type: "json_invalid",
	}).WithCause(err)
}

func jsonKind(kind string) string {
	switch {
	case kind == "string":
		return "string"
	case kind == "slice" || kind == "array":
		return "list"
	case kind == "struct" || kind == "map":
		return "dictionary"
	case strings.HasPrefix(kind, "float"):
		return "number"
	case strings.HasPrefix(kind, "int") || strings.HasPrefix(kind, "uint"):
		return "integer"
	default:
		return kind
	}
}

func invalid(details ...domain.FieldError) *domain.APIError {
	return domain.ErrValidation("Invalid request data").WithDetails(details)
}
