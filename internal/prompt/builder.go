// Package prompt assembles the ordered message list sent to the model.
package prompt

import "github.com/tjfontaine/polyglot-chat-proxy/internal/domain"

// Build returns the prompt for a chat turn: the system prompt (only when
// non-empty), the history in its original order, then the current user
// message.
func Build(message string, history []domain.Message, systemPrompt string) []domain.PromptMessage {
	messages := make([]domain.PromptMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, domain.PromptMessage{Role: domain.RoleSystem, Content: systemPrompt})
	}

	for _, m := range history {
		messages = append(messages, domain.PromptMessage{Role: m.Role, Content: m.Content})
	}

	return append(messages, domain.PromptMessage{Role: domain.RoleUser, Content: message})
}
