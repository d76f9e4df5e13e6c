package intent

import (
	"context"
	"strings"

	"github.com/laila-tgbot-go/internal/services/ai"
)

const classifierPrompt = `You are a strict binary classifier. Given a chat message from a group conversation, answer only "yes" if the message is directed at an AI assistant or asks it something, and only "no" otherwise. Never answer anything except "yes" or "no".`

// LLMClassifier asks the generative backend whether a message is
// directed at the assistant.
type LLMClassifier struct {
	backend ai.Service
}

// NewLLMClassifier creates the classifier on top of backend.
func NewLLMClassifier(backend ai.Service) *LLMClassifier {
	return &LLMClassifier{backend: backend}
}

// ClassifyIntent implements Classifier.
func (c *LLMClassifier) ClassifyIntent(ctx context.Context, text string) (bool, error) {
	answer, err := c.backend.Complete(ctx, ai.Request{
		SystemPrompt: classifierPrompt,
		UserText:     text,
		MaxTokens:    5,
		Temperature:  0,
	})
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes"), nil
}
