package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/i18n"
	"github.com/laila-tgbot-go/internal/middleware"
	"github.com/laila-tgbot-go/internal/services/storage"
)

// CommandHandler handles bot commands.
type CommandHandler struct {
	bot       *tgbotapi.BotAPI
	cfg       *config.Config
	storage   *storage.Manager
	metrics   *middleware.Metrics
	localizer *i18n.Localizer
	logger    *logrus.Logger
	startedAt time.Time
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	store *storage.Manager,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *CommandHandler {
	return &CommandHandler{
		bot:       bot,
		cfg:       cfg,
		storage:   store,
		metrics:   metrics,
		localizer: localizer,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// HandleCommand dispatches one command message.
func (h *CommandHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	h.metrics.RecordCommandExecuted(command)

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
		"command": command,
	}).Info("Command received")

	switch command {
	case "start":
		h.send(message, h.t(message, i18n.MsgWelcome, map[string]interface{}{"Name": message.From.FirstName}))
	case "help":
		h.send(message, h.t(message, i18n.MsgHelp, nil))
	case "on":
		h.handleToggleChat(ctx, message, true)
	case "off":
		h.handleToggleChat(ctx, message, false)
	case "poweron":
		h.handleToggleGlobal(ctx, message, true)
	case "poweroff":
		h.handleToggleGlobal(ctx, message, false)
	case "ban":
		h.handleModeration(ctx, message, "ban")
	case "kick":
		h.handleModeration(ctx, message, "kick")
	case "mute":
		h.handleModeration(ctx, message, "mute")
	case "broadcast":
		h.handleBroadcast(ctx, message)
	case "broadcastphoto":
		h.handleBroadcastPhoto(ctx, message)
	case "getfileid":
		h.handleGetFileID(message)
	case "stats":
		h.handleStats(ctx, message)
	default:
		h.send(message, h.t(message, i18n.MsgUnknownCommand, nil))
	}
}

// handleToggleChat switches the bot on or off in the current chat.
// Group admins and the owner may use it.
func (h *CommandHandler) handleToggleChat(ctx context.Context, message *tgbotapi.Message, enabled bool) {
	if !message.Chat.IsPrivate() && !h.isChatAdmin(message.Chat.ID, message.From.ID) {
		h.send(message, h.t(message, i18n.MsgAdminOnly, nil))
		return
	}

	// The per-chat switch is refused while the global switch is down.
	if enabled {
		global, err := h.storage.GlobalEnabled(ctx)
		if err == nil && !global {
			h.send(message, h.t(message, i18n.MsgBotOnRefused, nil))
			return
		}
	}

	if err := h.storage.SetChatEnabled(ctx, message.Chat.ID, enabled); err != nil {
		h.logger.WithError(err).Error("Failed to set chat toggle")
		h.send(message, h.t(message, i18n.MsgActionFailed, nil))
		return
	}

	if enabled {
		h.send(message, h.t(message, i18n.MsgBotOn, nil))
	} else {
		h.send(message, h.t(message, i18n.MsgBotOff, nil))
	}
}

// handleToggleGlobal flips the owner-only kill switch.
func (h *CommandHandler) handleToggleGlobal(ctx context.Context, message *tgbotapi.Message, enabled bool) {
	if !h.isOwner(message.From.ID) {
		h.send(message, h.t(message, i18n.MsgOwnerOnly, nil))
		return
	}

	if err := h.storage.SetGlobalEnabled(ctx, enabled); err != nil {
		h.logger.WithError(err).Error("Failed to set global toggle")
		h.send(message, h.t(message, i18n.MsgActionFailed, nil))
		return
	}

	if enabled {
		h.send(message, h.t(message, i18n.MsgPowerOn, nil))
	} else {
		h.send(message, h.t(message, i18n.MsgPowerOff, nil))
	}
}

// handleModeration bans, kicks or mutes the user the command replies to.
func (h *CommandHandler) handleModeration(ctx context.Context, message *tgbotapi.Message, action string) {
	if message.Chat.IsPrivate() {
		return
	}
	if !h.isChatAdmin(message.Chat.ID, message.From.ID) {
		h.send(message, h.t(message, i18n.MsgAdminOnly, nil))
		return
	}
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		h.send(message, h.t(message, i18n.MsgReplyNeeded, nil))
		return
	}

	target := message.ReplyToMessage.From
	if h.isChatAdmin(message.Chat.ID, target.ID) {
		h.send(message, h.t(message, i18n.MsgCannotTargetAdmin, nil))
		return
	}

	var err error
	var doneID string
	switch action {
	case "ban":
		_, err = h.bot.Request(tgbotapi.BanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: target.ID},
		})
		doneID = i18n.MsgUserBanned
	case "kick":
		// Ban then unban removes the user without a permanent ban.
		_, err = h.bot.Request(tgbotapi.BanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: target.ID},
		})
		if err == nil {
			_, err = h.bot.Request(tgbotapi.UnbanChatMemberConfig{
				ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: target.ID},
				OnlyIfBanned:     true,
			})
		}
		doneID = i18n.MsgUserKicked
	case "mute":
		_, err = h.bot.Request(tgbotapi.RestrictChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: message.Chat.ID, UserID: target.ID},
			Permissions:      &tgbotapi.ChatPermissions{CanSendMessages: false},
		})
		doneID = i18n.MsgUserMuted
	}

	if err != nil {
		h.logger.WithError(err).WithField("action", action).Error("Moderation action failed")
		h.send(message, h.t(message, i18n.MsgActionFailed, nil))
		return
	}

	h.send(message, h.t(message, doneID, map[string]interface{}{"Name": target.FirstName}))
}

// handleBroadcast sends the command's argument text to every known chat.
func (h *CommandHandler) handleBroadcast(ctx context.Context, message *tgbotapi.Message) {
	if !h.isOwner(message.From.ID) {
		h.send(message, h.t(message, i18n.MsgOwnerOnly, nil))
		return
	}

	text := strings.TrimSpace(message.CommandArguments())
	if text == "" {
		h.send(message, h.t(message, i18n.MsgBroadcastUsage, nil))
		return
	}

	sent := h.fanOut(ctx, func(chatID int64) tgbotapi.Chattable {
		return tgbotapi.NewMessage(chatID, text)
	})

	h.send(message, h.t(message, i18n.MsgBroadcastDone, map[string]interface{}{"Count": sent}))
}

// handleBroadcastPhoto forwards the replied-to photo, with an optional
// caption from the command arguments, to every known chat.
func (h *CommandHandler) handleBroadcastPhoto(ctx context.Context, message *tgbotapi.Message) {
	if !h.isOwner(message.From.ID) {
		h.send(message, h.t(message, i18n.MsgOwnerOnly, nil))
		return
	}

	reply := message.ReplyToMessage
	if reply == nil || len(reply.Photo) == 0 {
		h.send(message, h.t(message, i18n.MsgFileIDUsage, nil))
		return
	}

	// Largest size is last in the array.
	fileID := reply.Photo[len(reply.Photo)-1].FileID
	caption := strings.TrimSpace(message.CommandArguments())

	sent := h.fanOut(ctx, func(chatID int64) tgbotapi.Chattable {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		photo.Caption = caption
		return photo
	})

	h.send(message, h.t(message, i18n.MsgBroadcastDone, map[string]interface{}{"Count": sent}))
}

// fanOut delivers one message per known chat, pacing sends to stay
// under Telegram's flood limits.
func (h *CommandHandler) fanOut(ctx context.Context, build func(chatID int64) tgbotapi.Chattable) int {
	chats, err := h.storage.KnownChats(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list known chats")
		return 0
	}

	sent := 0
	for _, chatID := range chats {
		if _, err := h.bot.Send(build(chatID)); err != nil {
			h.logger.WithError(err).WithField("chat_id", chatID).Warn("Broadcast delivery failed")
			continue
		}
		sent++
		time.Sleep(50 * time.Millisecond)
	}
	return sent
}

// handleGetFileID returns the Telegram file ID of a replied-to photo.
func (h *CommandHandler) handleGetFileID(message *tgbotapi.Message) {
	if !h.isOwner(message.From.ID) {
		h.send(message, h.t(message, i18n.MsgOwnerOnly, nil))
		return
	}

	reply := message.ReplyToMessage
	if reply == nil || len(reply.Photo) == 0 {
		h.send(message, h.t(message, i18n.MsgFileIDUsage, nil))
		return
	}

	fileID := reply.Photo[len(reply.Photo)-1].FileID
	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("<code>%s</code>", fileID))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Error("Failed to send file ID")
	}
}

// handleStats reports host and bot statistics to the owner.
func (h *CommandHandler) handleStats(ctx context.Context, message *tgbotapi.Message) {
	if !h.isOwner(message.From.ID) {
		h.send(message, h.t(message, i18n.MsgOwnerOnly, nil))
		return
	}

	pingStart := time.Now()
	if _, err := h.bot.GetMe(); err != nil {
		h.logger.WithError(err).Warn("Ping probe failed")
	}
	ping := time.Since(pingStart)

	cpuPercent := 0.0
	if percents, err := cpu.Percent(time.Second, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}

	diskPercent := 0.0
	if du, err := disk.Usage("/"); err == nil {
		diskPercent = du.UsedPercent
	}

	messages, err := h.storage.MessageCount(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to read message counter")
	}

	chats, err := h.storage.KnownChats(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to list known chats")
	}

	text := h.t(message, i18n.MsgStats, map[string]interface{}{
		"Ping":     fmt.Sprintf("%d ms", ping.Milliseconds()),
		"Uptime":   formatUptime(time.Since(h.startedAt)),
		"CPU":      fmt.Sprintf("%.1f%%", cpuPercent),
		"RAM":      fmt.Sprintf("%.1f%%", memPercent),
		"Disk":     fmt.Sprintf("%.1f%%", diskPercent),
		"Messages": messages,
		"Chats":    len(chats),
	})

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Error("Failed to send stats")
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func (h *CommandHandler) isOwner(userID int64) bool {
	return h.cfg.Bot.AdminID != 0 && userID == h.cfg.Bot.AdminID
}

// isChatAdmin reports whether the user is a creator or administrator of
// the chat. The configured owner always qualifies.
func (h *CommandHandler) isChatAdmin(chatID, userID int64) bool {
	if h.isOwner(userID) {
		return true
	}

	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to look up chat member")
		return false
	}

	return member.Status == "creator" || member.Status == "administrator"
}

func (h *CommandHandler) send(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Error("Failed to send command reply")
	}
}

func (h *CommandHandler) t(message *tgbotapi.Message, id string, data map[string]interface{}) string {
	lang := h.cfg.I18n.DefaultLanguage
	if message.From != nil && message.From.LanguageCode != "" {
		lang = message.From.LanguageCode
	}
	return h.localizer.Get(lang, id, data)
}
