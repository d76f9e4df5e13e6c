package intent

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/models"
	"github.com/laila-tgbot-go/internal/services/storage"
)

// Classifier answers whether a free-form group message is directed at
// the assistant. Best effort; an error counts as "no".
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (bool, error)
}

// Verdict is the gate's decision for one message. A switched-off chat
// and an unaddressed group message are different denials: the first
// produces no reply of any kind, the second still allows deterministic
// sources (static dictionary, learned answers).
type Verdict int

const (
	// VerdictSilent means the bot is switched off for this message's
	// chat, globally or per chat. No reply at all.
	VerdictSilent Verdict = iota
	// VerdictPassive means a group message not addressed to the bot.
	// Deterministic sources may still answer; the generative path is
	// closed.
	VerdictPassive
	// VerdictRespond means the full response pipeline is open.
	VerdictRespond
)

// Gate decides whether an incoming message warrants a reply at all.
type Gate struct {
	storage     *storage.Manager
	classifier  Classifier
	botName     string
	botUsername string
	logger      *logrus.Logger
}

// NewGate builds the gate. classifier may be nil, in which case
// unaddressed group messages are never answered generatively.
func NewGate(store *storage.Manager, classifier Classifier, botName, botUsername string, logger *logrus.Logger) *Gate {
	return &Gate{
		storage:     store,
		classifier:  classifier,
		botName:     strings.ToLower(botName),
		botUsername: "@" + strings.ToLower(botUsername),
		logger:      logger,
	}
}

// Evaluate applies the decision order: toggles first, then
// reply-to-bot, private chat, name mention, and finally the auxiliary
// classifier for group messages with no explicit address.
func (g *Gate) Evaluate(ctx context.Context, msg models.IncomingMessage) Verdict {
	globalEnabled, err := g.storage.GlobalEnabled(ctx)
	if err != nil {
		g.logger.WithError(err).Warn("Failed to read global toggle, assuming enabled")
		globalEnabled = true
	}
	if !globalEnabled {
		return VerdictSilent
	}

	// Private chats bypass the per-chat toggle.
	if msg.Kind != models.ChatPrivate {
		chatEnabled, err := g.storage.ChatEnabled(ctx, msg.ChatID)
		if err != nil {
			g.logger.WithError(err).Warn("Failed to read chat toggle, assuming enabled")
			chatEnabled = true
		}
		if !chatEnabled {
			return VerdictSilent
		}
	}

	if msg.ReplyToSelf {
		g.logger.WithField("chat_id", msg.ChatID).Debug("Responding: reply to bot")
		return VerdictRespond
	}

	if msg.Kind == models.ChatPrivate {
		return VerdictRespond
	}

	lower := strings.ToLower(msg.Text)
	if strings.Contains(lower, g.botUsername) || strings.Contains(lower, g.botName) {
		g.logger.WithField("chat_id", msg.ChatID).Debug("Responding: bot mentioned")
		return VerdictRespond
	}

	if g.classifier == nil {
		return VerdictPassive
	}

	directed, err := g.classifier.ClassifyIntent(ctx, msg.Text)
	if err != nil {
		g.logger.WithError(err).Debug("Intent classification failed, not responding")
		return VerdictPassive
	}
	if directed {
		return VerdictRespond
	}
	return VerdictPassive
}

// ShouldRespond reports whether the full pipeline is open for msg.
func (g *Gate) ShouldRespond(ctx context.Context, msg models.IncomingMessage) bool {
	return g.Evaluate(ctx, msg) == VerdictRespond
}
