package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/models"
	"github.com/laila-tgbot-go/internal/services/ai"
	"github.com/laila-tgbot-go/internal/services/qa"
)

// Canned replies for the terminal states.
const (
	apologyBlocked = "Apologies, I can't discuss that topic."
	apologyOffline = "Apologies, I'm currently offline. Please try again later."
	apologyGeneric = "Oops! I couldn't understand that. Please try again in a moment."
)

// Resolution sources, reported through the resolution hook.
const (
	SourceStatic    = "static"
	SourceCache     = "cache"
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceBlocked   = "blocked"
	SourceError     = "error"
	SourceOffline   = "offline"
)

// Resolver turns an incoming message into a reply by walking a fixed
// chain of sources: static dictionary, learned answer cache, primary
// generative backend, secondary backend, offline fallback. It owns the
// bounded per-chat conversation history. Once the generative path is
// entered the resolver always produces a displayable string.
type Resolver struct {
	primary    ai.Service
	secondary  ai.Service
	answers    *qa.AnswerCache
	normalizer *qa.Normalizer

	systemPrompt string
	temperature  float64
	shortTokens  int
	longTokens   int
	timeout      time.Duration
	maxTurns     int

	sessmu   sync.Mutex
	sessions *gocache.Cache

	// onResolved is invoked with the source that produced each reply
	// and how long the resolution took.
	onResolved func(source string, elapsed time.Duration)

	logger *logrus.Logger
}

// NewResolver builds the resolver. secondary and answers may be nil.
func NewResolver(cfg *config.Config, primary, secondary ai.Service, answers *qa.AnswerCache, normalizer *qa.Normalizer, logger *logrus.Logger) *Resolver {
	return &Resolver{
		primary:      primary,
		secondary:    secondary,
		answers:      answers,
		normalizer:   normalizer,
		systemPrompt: cfg.AI.SystemPrompt,
		temperature:  cfg.AI.Temperature,
		shortTokens:  cfg.AI.ShortMaxTokens,
		longTokens:   cfg.AI.LongMaxTokens,
		timeout:      cfg.AI.RequestTimeout,
		maxTurns:     cfg.History.MaxTurns,
		sessions:     gocache.New(cfg.History.IdleTTL, cfg.History.IdleTTL/2),
		logger:       logger,
	}
}

// SetResolutionHook registers a callback fired once per produced reply.
func (r *Resolver) SetResolutionHook(fn func(source string, elapsed time.Duration)) {
	r.onResolved = fn
}

// Resolve produces a reply for msg. useAI is false for group messages
// not addressed to the bot: static and cache checks still run, but the
// generative path stays closed. Messages from switched-off chats never
// reach the resolver; the caller drops them on the gate's verdict. The
// second return value is false when no reply should be sent at all.
func (r *Resolver) Resolve(ctx context.Context, msg models.IncomingMessage, useAI bool) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	// The session lock is held for the whole resolution. It serializes
	// processing per chat, which keeps history appends in arrival
	// order; other chats proceed independently. The rotator and the
	// storage backends take only their own short-lived locks and never
	// wait on a session.
	sess := r.session(msg.ChatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	normalized := r.normalizer.Normalize(msg.Text)

	if answer, ok := staticResponses[normalized]; ok {
		r.logger.WithField("chat_id", msg.ChatID).Info("Serving response from static dictionary")
		return r.finish(sess, msg.Text, answer, SourceStatic, start), true
	}

	if r.answers != nil {
		if answer, ok := r.answers.Lookup(ctx, msg.Text); ok {
			r.logger.WithField("chat_id", msg.ChatID).Info("Serving response from answer sheet")
			return r.finish(sess, msg.Text, answer, SourceCache, start), true
		}
	}

	if !useAI && msg.Kind != models.ChatPrivate {
		return "", false
	}

	req := ai.Request{
		SystemPrompt: r.systemPrompt,
		History:      sess.snapshot(),
		UserText:     msg.Text,
		MaxTokens:    r.budget(msg.Text),
		Temperature:  r.temperature,
	}

	answer, err := r.primary.Complete(ctx, req)
	switch {
	case err == nil:
		if r.answers != nil {
			r.answers.Store(ctx, msg.Text, answer)
		}
		return r.finish(sess, msg.Text, answer, SourcePrimary, start), true

	case errors.Is(err, ai.ErrContentBlocked):
		r.logger.WithFields(logrus.Fields{
			"chat_id": msg.ChatID,
		}).Warn("Prompt blocked by backend policy")
		return r.finish(sess, msg.Text, apologyBlocked, SourceBlocked, start), true

	case errors.Is(err, ai.ErrAllCredentialsExhausted),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		r.logger.WithError(err).WithField("chat_id", msg.ChatID).Warn("Primary backend unavailable")
		// Fall through to the secondary backend.

	default:
		// Generic backend failure: log the detail, never leak it to
		// the user.
		r.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Primary backend request failed")
		return r.finish(sess, msg.Text, apologyGeneric, SourceError, start), true
	}

	if r.secondary != nil && ctx.Err() == nil {
		answer, err := r.secondary.Complete(ctx, req)
		if err == nil {
			if r.answers != nil {
				r.answers.Store(ctx, msg.Text, answer)
			}
			return r.finish(sess, msg.Text, answer, SourceSecondary, start), true
		}
		r.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Secondary backend request failed")
	}

	r.logger.WithField("chat_id", msg.ChatID).Error("All response sources exhausted")
	return r.finish(sess, msg.Text, apologyOffline, SourceOffline, start), true
}

// finish appends the exchange to the chat history and reports the
// resolution source. The history is appended regardless of which state
// produced the answer so multi-turn context stays coherent.
func (r *Resolver) finish(sess *session, userText, answer, source string, start time.Time) string {
	sess.append(models.Turn{Role: models.RoleUser, Text: userText}, r.maxTurns)
	sess.append(models.Turn{Role: models.RoleAssistant, Text: answer}, r.maxTurns)
	if r.onResolved != nil {
		r.onResolved(source, time.Since(start))
	}
	return answer
}

// budget picks the response length: substantive questions get the long
// budget, casual chat stays terse.
func (r *Resolver) budget(text string) int {
	lower := strings.ToLower(text)
	if len(strings.Fields(text)) > 5 || strings.Contains(text, "?") || strings.Contains(lower, "how to") {
		return r.longTokens
	}
	return r.shortTokens
}

// session holds one chat's bounded conversation history.
type session struct {
	mu    sync.Mutex
	turns []models.Turn
}

func (s *session) append(turn models.Turn, maxTurns int) {
	s.turns = append(s.turns, turn)
	if len(s.turns) > maxTurns {
		s.turns = s.turns[len(s.turns)-maxTurns:]
	}
}

func (s *session) snapshot() []models.Turn {
	return append([]models.Turn(nil), s.turns...)
}

// session returns the chat's session, creating it on first use. Idle
// sessions are evicted by the underlying cache's TTL so the map does
// not grow without bound.
func (r *Resolver) session(chatID int64) *session {
	r.sessmu.Lock()
	defer r.sessmu.Unlock()

	key := sessionKey(chatID)
	if val, found := r.sessions.Get(key); found {
		// Refresh the idle timer.
		r.sessions.SetDefault(key, val)
		return val.(*session)
	}

	sess := &session{}
	r.sessions.SetDefault(key, sess)
	return sess
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("chat:%d", chatID)
}
