package domain

// TokenCounter estimates token usage for logging and metrics.
type TokenCounter interface {
	// CountPrompt counts the tokens of an assembled prompt for the given model.
	CountPrompt(model string, prompt []PromptMessage) (int, error)

	// CountText counts the tokens of generated text for the given model.
	CountText(model string, text string) (int, error)
}
