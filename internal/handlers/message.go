package handlers

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/i18n"
	"github.com/laila-tgbot-go/internal/middleware"
	"github.com/laila-tgbot-go/internal/models"
	"github.com/laila-tgbot-go/internal/resolver"
	"github.com/laila-tgbot-go/internal/services/intent"
	"github.com/laila-tgbot-go/internal/services/storage"
	"github.com/laila-tgbot-go/pkg/logger"
	"github.com/laila-tgbot-go/pkg/markdown"
)

// MessageHandler runs the full response pipeline for non-command text
// messages.
type MessageHandler struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.Config
	gate        *intent.Gate
	resolver    *resolver.Resolver
	storage     *storage.Manager
	rateLimiter middleware.RateLimiter
	security    *middleware.SecurityMiddleware
	metrics     *middleware.Metrics
	localizer   *i18n.Localizer
	logger      *logrus.Logger
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	gate *intent.Gate,
	res *resolver.Resolver,
	store *storage.Manager,
	rateLimiter middleware.RateLimiter,
	security *middleware.SecurityMiddleware,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	log *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		bot:         bot,
		cfg:         cfg,
		gate:        gate,
		resolver:    res,
		storage:     store,
		rateLimiter: rateLimiter,
		security:    security,
		metrics:     metrics,
		localizer:   localizer,
		logger:      log,
	}
}

// HandleMessage processes one incoming text message.
func (h *MessageHandler) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message == nil || message.Text == "" {
		return
	}

	h.metrics.RecordMessageReceived(message.Chat.Type)

	// Every chat that ever talked to the bot is a broadcast target.
	if err := h.storage.AddKnownChat(ctx, message.Chat.ID); err != nil {
		h.logger.WithError(err).Warn("Failed to register chat")
	}

	if err := h.security.ValidateInput(message.Text); err != nil {
		logger.WithChat(h.logger, message.Chat.ID, message.From.ID).
			WithError(err).Warn("Rejected invalid input")
		h.metrics.RecordMessageProcessed("rejected")
		return
	}

	if !h.rateLimiter.Allow(message.From.ID) {
		h.metrics.RecordRateLimitExceeded()
		if message.Chat.IsPrivate() {
			h.reply(message, h.localizer.Get(h.lang(message), i18n.MsgRateLimitExceeded, nil))
		}
		h.metrics.RecordMessageProcessed("rate_limited")
		return
	}

	msg := h.incoming(message)

	// A switched-off chat gets nothing, not even static answers. Only
	// unaddressed group messages fall through with the generative path
	// closed, so static and cached answers still work there.
	verdict := h.gate.Evaluate(ctx, msg)
	if verdict == intent.VerdictSilent {
		h.metrics.RecordMessageProcessed("skipped")
		return
	}
	useAI := verdict == intent.VerdictRespond

	if useAI {
		typing := tgbotapi.NewChatAction(message.Chat.ID, tgbotapi.ChatTyping)
		if _, err := h.bot.Request(typing); err != nil {
			h.logger.WithError(err).Debug("Failed to send typing action")
		}
	}

	start := time.Now()
	answer, ok := h.resolver.Resolve(ctx, msg, useAI)
	if !ok {
		h.metrics.RecordMessageProcessed("skipped")
		return
	}

	if err := h.storage.IncrementMessageCount(ctx); err != nil {
		h.logger.WithError(err).Warn("Failed to increment message counter")
	}

	h.reply(message, answer)
	h.metrics.RecordMessageProcessed("ok")

	logger.WithChat(h.logger, message.Chat.ID, message.From.ID).
		WithField("duration", time.Since(start)).Info("Message processed")
}

// incoming translates the Telegram update into the pipeline's message
// shape.
func (h *MessageHandler) incoming(message *tgbotapi.Message) models.IncomingMessage {
	kind := models.ChatGroup
	if message.Chat.IsPrivate() {
		kind = models.ChatPrivate
	}

	replyToSelf := message.ReplyToMessage != nil &&
		message.ReplyToMessage.From != nil &&
		message.ReplyToMessage.From.ID == h.bot.Self.ID

	return models.IncomingMessage{
		ChatID:      message.Chat.ID,
		UserID:      message.From.ID,
		Text:        message.Text,
		Kind:        kind,
		ReplyToSelf: replyToSelf,
		SenderName:  message.From.FirstName,
	}
}

// reply sends the answer as Telegram HTML, retrying as plain text when
// the rendered markup is rejected.
func (h *MessageHandler) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, markdown.ToTelegramHTML(text))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = message.MessageID

	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Debug("HTML send failed, retrying as plain text")
		plain := tgbotapi.NewMessage(message.Chat.ID, text)
		plain.ReplyToMessageID = message.MessageID
		if _, err := h.bot.Send(plain); err != nil {
			h.logger.WithError(err).Error("Failed to send reply")
		}
	}
}

func (h *MessageHandler) lang(message *tgbotapi.Message) string {
	if message.From != nil && message.From.LanguageCode != "" {
		return message.From.LanguageCode
	}
	return h.cfg.I18n.DefaultLanguage
}
