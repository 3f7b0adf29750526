package prompt

import (
	"reflect"
	"testing"

	"github.com/tjfontaine/polyglot-chat-proxy/internal/domain"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		history      []domain.Message
		systemPrompt string
		want         []domain.PromptMessage
	}{
		{
			name:    "no system prompt and no history",
			message: "now",
			want: []domain.PromptMessage{
				{Role: domain.RoleUser, Content: "now"},
			},
		},
		{
			name:         "system prompt first, history in order, user last",
			message:      "now",
			history:      []domain.Message{{ID: "1", Role: domain.RoleUser, Content: "hi"}},
			systemPrompt: "sys",
			want: []domain.PromptMessage{
				{Role: domain.RoleSystem, Content: "sys"},
				{Role: domain.RoleUser, Content: "hi"},
				{Role: domain.RoleUser, Content: "now"},
			},
		},
		{
			name:    "assistant turns keep their role",
			message: "and then?",
			history: []domain.Message{
				{ID: "1", Role: domain.RoleUser, Content: "tell me a story"},
				{ID: "2", Role: domain.RoleAssistant, Content: "once upon a time"},
			},
			want: []domain.PromptMessage{
				{Role: domain.RoleUser, Content: "tell me a story"},
				{Role: domain.RoleAssistant, Content: "once upon a time"},
				{Role: domain.RoleUser, Content: "and then?"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.message, tt.history, tt.systemPrompt)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuild_DoesNotAliasHistory(t *testing.T) {
	history := []domain.Message{{ID: "1", Role: domain.RoleUser, Content: "hi"}}

	got := Build("now", history, "")
	got[0].Content = "changed"

	if history[0].Content != "hi" {
		t.Errorf("history mutated: %q", history[0].Content)
	}
}
