package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL   string
	DBMaxConns    int
	HTTPAddr      string
	LogLevel      string
	Environment   string
	MigrationsRun bool // apply pending migrations when serving

	NotifyAPIKey  string
	NotifyBaseURL string
	NotifyTimeout time.Duration

	// Dispatch throttling: BatchSize * (60s / BatchDelay) must stay under
	// half the provider's per-minute limit (3,000).
	BatchSize  int
	BatchDelay time.Duration

	// Templates are keyed by journey, message type and contact type.
	Templates map[string]string

	CronSpecStatusCheck string
	StatusLookback      time.Duration

	// Ops bot. Optional; alerts fall back to the log when unset.
	TelegramToken   string
	AdminTelegramID int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.DBMaxConns, err = strconv.Atoi(envOr("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	cfg.NotifyAPIKey = os.Getenv("NOTIFY_API_KEY")
	if cfg.NotifyAPIKey == "" {
		return nil, fmt.Errorf("NOTIFY_API_KEY is not set")
	}

	cfg.NotifyBaseURL = envOr("NOTIFY_BASE_URL", "https://api.notifications.service.gov.uk")
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.MigrationsRun, err = strconv.ParseBool(envOr("RUN_MIGRATIONS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_MIGRATIONS: %w", err)
	}

	cfg.NotifyTimeout, err = time.ParseDuration(envOr("NOTIFY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEOUT: %w", err)
	}

	cfg.BatchSize, err = strconv.Atoi(envOr("NOTIFY_BATCH_SIZE", "125"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_BATCH_SIZE: %w", err)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("NOTIFY_BATCH_SIZE must be at least 1, got %d", cfg.BatchSize)
	}

	cfg.BatchDelay, err = time.ParseDuration(envOr("NOTIFY_BATCH_DELAY", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_BATCH_DELAY: %w", err)
	}

	cfg.CronSpecStatusCheck = envOr("CRON_SPEC_STATUS_CHECK", "*/15 * * * *") // every 15 minutes

	cfg.StatusLookback, err = time.ParseDuration(envOr("NOTIFY_STATUS_LOOKBACK", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_STATUS_LOOKBACK: %w", err)
	}

	cfg.Templates, err = loadTemplates()
	if err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

// TemplateKey builds the key used in AppConfig.Templates.
func TemplateKey(journey, messageType, contactType string) string {
	return journey + "." + messageType + "." + strings.ReplaceAll(contactType, " ", "_")
}

// templateEnv maps template keys to the variables that override them.
// Defaults are the Notify template ids for the returns notices.
var templateEnv = []struct {
	key, env, fallback string
}{
	{TemplateKey("invitations", "email", "primary user"), "TEMPLATE_INVITATION_PRIMARY_USER_EMAIL", "2fa7fc83-4df1-4f52-bccf-ff0faeb12b6f"},
	{TemplateKey("invitations", "email", "returns agent"), "TEMPLATE_INVITATION_RETURNS_AGENT_EMAIL", "41c45bd4-8225-4d7e-a175-b48b613b5510"},
	{TemplateKey("invitations", "letter", "licence holder"), "TEMPLATE_INVITATION_LICENCE_HOLDER_LETTER", "4fe80aed-c5dd-44c3-9044-d0289d635019"},
	{TemplateKey("invitations", "letter", "returns to"), "TEMPLATE_INVITATION_RETURNS_TO_LETTER", "0e535549-99a2-44a9-84a7-589b12d00879"},
	{TemplateKey("reminders", "email", "primary user"), "TEMPLATE_REMINDER_PRIMARY_USER_EMAIL", "f1144bc7-8bdc-4e82-87cb-1a6c69445836"},
	{TemplateKey("reminders", "email", "returns agent"), "TEMPLATE_REMINDER_RETURNS_AGENT_EMAIL", "038e1807-d1b5-4f09-a5a6-d7eee9030a7a"},
	{TemplateKey("reminders", "letter", "licence holder"), "TEMPLATE_REMINDER_LICENCE_HOLDER_LETTER", "c01c808b-094b-4a3a-ab9f-a6e86bad36ba"},
	{TemplateKey("reminders", "letter", "returns to"), "TEMPLATE_REMINDER_RETURNS_TO_LETTER", "e9f132c7-a550-4e18-a5c1-78375f07aa2d"},
}

// loadTemplates reads the template ids. Notify template ids are UUIDs and
// are stored as such against every notification.
func loadTemplates() (map[string]string, error) {
	templates := make(map[string]string, len(templateEnv))
	for _, t := range templateEnv {
		id := envOr(t.env, t.fallback)
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", t.env, id, err)
		}
		templates[t.key] = id
	}
	return templates, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
