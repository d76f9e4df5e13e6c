package ai

import (
	"context"

	"github.com/laila-tgbot-go/internal/models"
)

// Request is a single completion request against a generative backend.
type Request struct {
	SystemPrompt string
	History      []models.Turn
	UserText     string
	MaxTokens    int
	Temperature  float64
}

// Service is a generative text backend.
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}
