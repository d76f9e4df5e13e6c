package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/models"
)

// Gemini is the primary generative backend. A single Complete call runs
// the credential rotation loop: cooling keys are skipped, quota failures
// put the key on cooldown and rotate, any other failure is returned
// as-is. The retry budget is exactly one iteration per configured key,
// so the loop always terminates.
type Gemini struct {
	model   string
	rotator *Rotator
	logger  *logrus.Logger

	// call performs one generation attempt against a single key.
	// Swapped out in tests.
	call func(ctx context.Context, key string, req Request) (string, error)

	// onRotate is invoked every time a key is put on cooldown.
	onRotate func()
}

// NewGemini creates the primary backend from the AI config.
func NewGemini(cfg *config.AIConfig, logger *logrus.Logger) *Gemini {
	g := &Gemini{
		model:   cfg.Model,
		rotator: NewRotator(cfg.APIKeys, cfg.Cooldown),
		logger:  logger,
	}
	g.call = g.generate
	logger.WithFields(logrus.Fields{
		"model":    cfg.Model,
		"keys":     len(cfg.APIKeys),
		"cooldown": cfg.Cooldown,
	}).Info("Gemini backend initialized")
	return g
}

// SetRotationHook registers a callback fired on every quota rotation.
func (g *Gemini) SetRotationHook(fn func()) {
	g.onRotate = fn
}

// Complete implements Service.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	budget := g.rotator.Len()
	for attempt := 0; attempt < budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if g.rotator.IsCooling() {
			g.rotator.Advance()
			continue
		}

		key := g.rotator.Active()
		text, err := g.call(ctx, key, req)
		if err == nil {
			return text, nil
		}

		if errors.Is(err, ErrQuotaExceeded) {
			g.logger.WithFields(logrus.Fields{
				"attempt":    attempt + 1,
				"key_suffix": keySuffix(key),
			}).Warn("Quota exceeded, rotating credential")
			g.rotator.MarkCooldown()
			g.rotator.Advance()
			if g.onRotate != nil {
				g.onRotate()
			}
			continue
		}

		// Non-quota failures are not capacity problems; do not rotate.
		return "", err
	}

	return "", ErrAllCredentialsExhausted
}

// generate performs one request against the Gemini API with the given key.
func (g *Gemini) generate(ctx context.Context, key string, req Request) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.SetTemperature(float32(req.Temperature))

	session := model.StartChat()
	session.History = toGeminiHistory(req.History)

	resp, err := session.SendMessage(ctx, genai.Text(req.UserText))
	if err != nil {
		return "", classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

func toGeminiHistory(turns []models.Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// classifyError maps SDK errors onto the resolver's failure classes.
func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", ErrContentBlocked, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return fmt.Errorf("gemini request failed with status %d: %w", gerr.Code, err)
	}

	// The API sometimes reports quota exhaustion through a plain error
	// string rather than a structured status.
	if msg := err.Error(); strings.Contains(msg, "429") || strings.Contains(msg, "exceeded your current quota") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}

	return err
}

func keySuffix(key string) string {
	if len(key) <= 5 {
		return key
	}
	return key[len(key)-5:]
}
