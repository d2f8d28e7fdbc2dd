package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"water_billing_service/internal/app"
	"water_billing_service/internal/domain/notify"
	domainTelegram "water_billing_service/internal/domain/telegram"
	"water_billing_service/internal/infra/alerting"
	"water_billing_service/internal/infra/config"
	idb "water_billing_service/internal/infra/database"
	"water_billing_service/internal/infra/logger"
	"water_billing_service/internal/infra/metrics"
	notifyClient "water_billing_service/internal/infra/notify"
	"water_billing_service/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

// services holds everything the commands share.
type services struct {
	cfg     *config.AppConfig
	db      *sql.DB
	metrics *metrics.Metrics
	bot     *telebot.Bot // nil when no TELEGRAM_TOKEN

	licenceRepo *idb.PostgresLicenceRepository
	notifRepo   *idb.PostgresNotificationRepository

	flags      *app.SupplementaryFlagsService
	imports    *app.LicenceImportService
	notices    *app.NoticeService
	statuses   *app.NotificationStatusService
	admin      *app.AdminService
	dispatcher *app.NotificationDispatcher
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	logger.Log.Infof("Configuration loaded. Environment: %s", cfg.Environment)
	return cfg, nil
}

func openDatabase(cfg *config.AppConfig) (*sql.DB, error) {
	db, err := idb.NewPostgresConnection(context.Background(), cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns: cfg.DBMaxConns,
		MaxIdleConns: cfg.DBMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	logger.Log.Info("Database connection established successfully.")
	return db, nil
}

// buildServices wires repositories, clients and application services. The
// caller owns s.db.
func buildServices(cfg *config.AppConfig, withBot bool) (*services, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	s := &services{
		cfg:         cfg,
		db:          db,
		metrics:     metrics.New(true),
		licenceRepo: idb.NewPostgresLicenceRepository(db),
		notifRepo:   idb.NewPostgresNotificationRepository(db),
	}
	recipientRepo := idb.NewPostgresRecipientRepository(db)

	var nc notify.Client
	nc, err = notifyClient.NewClient(cfg.NotifyBaseURL, cfg.NotifyAPIKey, cfg.NotifyTimeout, logger.Component("notify_client"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create Notify client: %w", err)
	}

	var tg domainTelegram.Client
	if withBot && cfg.TelegramToken != "" {
		s.bot, err = newBot(cfg)
		if err != nil {
			db.Close()
			return nil, err
		}
		tg = telegram.NewTelebotAdapter(s.bot)
	}
	notifier := alerting.NewLogNotifier(logger.Component("alerting"), tg, cfg.AdminTelegramID)

	s.flags = app.NewSupplementaryFlagsService(s.licenceRepo, notifier, s.metrics, logger.Component("supplementary_flags"))
	s.imports = app.NewLicenceImportService(s.flags, s.licenceRepo, logger.Component("licence_import"))
	s.dispatcher = app.NewNotificationDispatcher(nc, s.notifRepo, s.metrics, logger.Component("dispatcher"), app.DispatcherOptions{
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay,
		Templates:  cfg.Templates,
	})
	s.notices = app.NewNoticeService(recipientRepo, s.notifRepo, s.dispatcher, notifier, logger.Component("notices"))
	s.statuses = app.NewNotificationStatusService(nc, s.notifRepo, s.metrics, logger.Component("notification_status"),
		cfg.BatchSize, cfg.BatchDelay, cfg.StatusLookback)
	s.admin = app.NewAdminService(s.licenceRepo, s.notifRepo, s.statuses, cfg.AdminTelegramID)

	return s, nil
}

func newBot(cfg *config.AppConfig) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}
