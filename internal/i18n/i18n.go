package i18n

import (
	"encoding/json"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/laila-tgbot-go/internal/config"
)

// Localizer manages the bot's user-facing strings, English and Hindi.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer loads the configured language bundles.
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("configs/i18n/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns the localized message for lang, falling back to the
// default language and finally to the message ID itself.
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}
	if localizer == nil {
		return messageID
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Message IDs
const (
	MsgWelcome           = "welcome"
	MsgHelp              = "help"
	MsgBotOn             = "bot_on"
	MsgBotOff            = "bot_off"
	MsgBotOnRefused      = "bot_on_refused"
	MsgPowerOn           = "power_on"
	MsgPowerOff          = "power_off"
	MsgOwnerOnly         = "owner_only"
	MsgAdminOnly         = "admin_only"
	MsgReplyNeeded       = "reply_needed"
	MsgCannotTargetAdmin = "cannot_target_admin"
	MsgUserBanned        = "user_banned"
	MsgUserKicked        = "user_kicked"
	MsgUserMuted         = "user_muted"
	MsgActionFailed      = "action_failed"
	MsgBroadcastUsage    = "broadcast_usage"
	MsgBroadcastDone     = "broadcast_done"
	MsgFileIDUsage       = "file_id_usage"
	MsgStats             = "stats"
	MsgRateLimitExceeded = "rate_limit_exceeded"
	MsgUnknownCommand    = "unknown_command"
)
