package qa

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/filter"
)

// AnswerCache is the learned question→answer layer. All reads and writes
// are gated by the sensitive-content filter: a sensitive question never
// touches the external store, in either direction. Store failures are
// logged and swallowed; the cache is best-effort and must never block
// the reply path.
type AnswerCache struct {
	store      Store
	normalizer *Normalizer
	local      *gocache.Cache
	logger     *logrus.Logger
}

// NewAnswerCache wraps store with normalization, filtering, and a local
// read-through layer so hot questions do not rescan the sheet. A
// localTTL <= 0 falls back to five minutes.
func NewAnswerCache(store Store, normalizer *Normalizer, localTTL time.Duration, logger *logrus.Logger) *AnswerCache {
	if localTTL <= 0 {
		localTTL = 5 * time.Minute
	}
	return &AnswerCache{
		store:      store,
		normalizer: normalizer,
		local:      gocache.New(localTTL, localTTL*2),
		logger:     logger,
	}
}

// Normalize exposes the cache's key normalization so callers use the
// exact same form for static-dictionary checks.
func (c *AnswerCache) Normalize(question string) string {
	return c.normalizer.Normalize(question)
}

// Lookup returns a learned answer for question, if one exists.
func (c *AnswerCache) Lookup(ctx context.Context, question string) (string, bool) {
	if filter.ContainsSensitive(question) {
		c.logger.WithField("question", question).Info("Skipping answer lookup, sensitive content")
		return "", false
	}

	key := c.normalizer.Normalize(question)
	if key == "" {
		return "", false
	}

	if val, found := c.local.Get(key); found {
		return val.(string), true
	}

	answer, found, err := c.store.FindByQuestion(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Answer store lookup failed")
		return "", false
	}
	if !found {
		return "", false
	}

	c.local.SetDefault(key, answer)
	return answer, true
}

// Store persists a learned pair. No-ops silently when the question is
// sensitive or the external store is unreachable.
func (c *AnswerCache) Store(ctx context.Context, question, answer string) {
	if filter.ContainsSensitive(question) {
		c.logger.WithField("question", question).Info("Skipping answer store, sensitive content")
		return
	}

	key := c.normalizer.Normalize(question)
	if key == "" || answer == "" {
		return
	}

	if err := c.store.AppendRow(ctx, key, answer); err != nil {
		c.logger.WithError(err).Warn("Failed to store learned answer")
		return
	}

	c.local.SetDefault(key, answer)
	c.logger.WithFields(logrus.Fields{
		"question": key,
	}).Debug("Learned answer stored")
}
