package domain

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history sent by the client.
type Message struct {
	ID        string `json:"id" validate:"required"`
	Content   string `json:"content"`
	Role      Role   `json:"role" validate:"required,oneof=user assistant"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// ChatRequest is a validated chat call. It is owned by the request that
// created it and is never shared across requests.
type ChatRequest struct {
	Message      string    `json:"message" validate:"min=1,max=10000"`
	History      []Message `json:"history" validate:"dive"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt"`
	Temperature  float32   `json:"temperature" validate:"gte=0,lte=1"`
}

// ChatResponse is the result of a non-streaming chat call.
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// PromptMessage is a role-tagged entry of the prompt sent to the model.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StreamMetadata describes where a streamed delta came from.
type StreamMetadata struct {
	Model        string
	FinishReason string
	// Position and Total are only meaningful when Total > 0.
	Position int
	Total    int
}

// IsZero reports whether the metadata carries nothing worth encoding.
func (m *StreamMetadata) IsZero() bool {
	return m == nil || (m.Model == "" && m.FinishReason == "" && m.Total == 0)
}

// StreamEvent is a single element of a model stream: a text delta, or a
// terminal error when Error is non-nil.
type StreamEvent struct {
	Text     string
	Metadata *StreamMetadata
	Error    error
}

// DataEvent builds a text delta event.
func DataEvent(text string, meta *StreamMetadata) StreamEvent {
	return StreamEvent{Text: text, Metadata: meta}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Error: err}
}
