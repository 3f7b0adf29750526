package tokens

import "github.com/tjfontaine/polyglot-chat-proxy/internal/domain"

// Estimator approximates token counts from character length. It is used
// when no tokenizer is available for a model.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountPrompt estimates the token count of a prompt.
func (e *Estimator) CountPrompt(model string, prompt []domain.PromptMessage) (int, error) {
	totalChars := 0
	for _, msg := range prompt {
		totalChars += len(msg.Role) + len(msg.Content)
		totalChars += 4 // role tokens + separators
	}
	return int(float64(totalChars) / e.CharsPerToken), nil
}

// CountText estimates the token count of text.
func (e *Estimator) CountText(model, text string) (int, error) {
	return int(float64(len(text)) / e.CharsPerToken), nil
}

// Fallback returns a counter that tries primary first and answers with
// secondary when primary fails.
func Fallback(primary, secondary domain.TokenCounter) domain.TokenCounter {
	return &fallbackCounter{primary: primary, secondary: secondary}
}

type fallbackCounter struct {
	primary   domain.TokenCounter
	secondary domain.TokenCounter
}

func (f *fallbackCounter) CountPrompt(model string, prompt []domain.PromptMessage) (int, error) {
	if n, err := f.primary.CountPrompt(model, prompt); err == nil {
		return n, nil
	}
	return f.secondary.CountPrompt(model, prompt)
}

func (f *fallbackCounter) CountText(model, text string) (int, error) {
	if n, err := f.primary.CountText(model, text); err == nil {
		return n, nil
	}
	return f.secondary.CountText(model, text)
}
