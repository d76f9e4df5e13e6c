package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/models"
)

// OpenAICompat is the secondary backend: a single-attempt client for any
// OpenAI-compatible chat completions endpoint. The resolver falls back
// to it once the whole Gemini credential pool is exhausted.
type OpenAICompat struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewOpenAICompat creates the secondary backend from config. Returns nil
// when no secondary endpoint is configured.
func NewOpenAICompat(cfg *config.SecondaryConfig, logger *logrus.Logger) *OpenAICompat {
	if !cfg.Enabled || cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 350
	}

	logger.WithFields(logrus.Fields{
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Info("Secondary backend configured")

	return &OpenAICompat{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Complete implements Service.
func (s *OpenAICompat) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]string, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	for _, t := range req.History {
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, map[string]string{
			"role":    role,
			"content": t.Text,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.UserText,
	})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.maxTokens
	}

	reqBody := map[string]interface{}{
		"model":       s.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(s.baseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	s.logger.WithFields(logrus.Fields{
		"model": s.model,
		"url":   url,
	}).Debug("Sending secondary AI request")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: secondary endpoint returned 429", ErrQuotaExceeded)
		}
		return "", fmt.Errorf("secondary request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Error.Message != "" {
		return "", fmt.Errorf("secondary AI error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from secondary AI")
	}

	return result.Choices[0].Message.Content, nil
}
