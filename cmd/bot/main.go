package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/handlers"
	"github.com/laila-tgbot-go/internal/i18n"
	"github.com/laila-tgbot-go/internal/middleware"
	"github.com/laila-tgbot-go/internal/resolver"
	"github.com/laila-tgbot-go/internal/services/ai"
	"github.com/laila-tgbot-go/internal/services/intent"
	"github.com/laila-tgbot-go/internal/services/qa"
	"github.com/laila-tgbot-go/internal/services/storage"
	"github.com/laila-tgbot-go/pkg/logger"
)

const botName = "Laila"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Bot terminated")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	log.WithField("username", bot.Self.UserName).Info("Authorized on Telegram")

	store, err := storage.NewManager(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	metrics := middleware.NewMetrics()

	primary := ai.NewGemini(&cfg.AI, log)
	primary.SetRotationHook(metrics.RecordCredentialRotation)

	// The secondary constructor returns a typed nil when unconfigured;
	// assigning that to the interface directly would make it non-nil.
	var secondary ai.Service
	if compat := ai.NewOpenAICompat(&cfg.AI.Secondary, log); compat != nil {
		secondary = compat
		log.WithField("model", cfg.AI.Secondary.Model).Info("Secondary backend enabled")
	}

	normalizer := qa.NewNormalizer(botName, bot.Self.UserName)

	var answers *qa.AnswerCache
	if cfg.Sheets.Enabled {
		sheetStore, err := qa.NewSheetsStore(ctx, &cfg.Sheets, log)
		if err != nil {
			return fmt.Errorf("failed to create answer sheet store: %w", err)
		}
		answers = qa.NewAnswerCache(sheetStore, normalizer, cfg.Sheets.LocalTTL, log)
		log.WithField("spreadsheet", cfg.Sheets.SpreadsheetID).Info("Answer sheet enabled")
	}

	res := resolver.NewResolver(cfg, primary, secondary, answers, normalizer, log)
	res.SetResolutionHook(func(source string, elapsed time.Duration) {
		metrics.RecordResolution(source)
		metrics.ObserveResolution(source, elapsed)
	})

	gate := intent.NewGate(store, intent.NewLLMClassifier(primary), botName, bot.Self.UserName, log)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		return fmt.Errorf("failed to create localizer: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(cfg, log)
	security := middleware.NewSecurityMiddleware(log)

	messageHandler := handlers.NewMessageHandler(bot, cfg, gate, res, store, rateLimiter, security, metrics, localizer, log)
	commandHandler := handlers.NewCommandHandler(bot, cfg, store, metrics, localizer, log)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithField("port", cfg.Monitoring.Metrics.Port).Info("Starting metrics server")
			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	updates, err := updatesChannel(cfg, bot, log)
	if err != nil {
		return err
	}

	log.Info("Bot is running")

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			bot.StopReceivingUpdates()
			return nil

		case update := <-updates:
			if update.Message == nil {
				continue
			}

			message := update.Message
			go func() {
				if message.IsCommand() {
					commandHandler.HandleCommand(ctx, message)
					return
				}
				messageHandler.HandleMessage(ctx, message)
			}()
		}
	}
}

// updatesChannel configures webhook or long-poll delivery.
func updatesChannel(cfg *config.Config, bot *tgbotapi.BotAPI, log *logrus.Logger) (tgbotapi.UpdatesChannel, error) {
	if cfg.Bot.Webhook.Enabled && cfg.Bot.Webhook.URL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Bot.Webhook.URL + "/" + bot.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to build webhook config: %w", err)
		}
		if _, err := bot.Request(wh); err != nil {
			return nil, fmt.Errorf("failed to set webhook: %w", err)
		}

		updates := bot.ListenForWebhook("/" + bot.Token)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Bot.Webhook.Port)
			log.WithField("addr", addr).Info("Starting webhook listener")
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.WithError(err).Error("Webhook listener failed")
			}
		}()
		return updates, nil
	}

	// Long polling. Any lingering webhook must be removed first.
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		log.WithError(err).Warn("Failed to delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout
	if u.Timeout == 0 {
		u.Timeout = 30
	}
	return bot.GetUpdatesChan(u), nil
}
