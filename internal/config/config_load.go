package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         18890,
			RateLimitRPM: 30,
		},
		WhatsApp: WhatsAppConfig{
			APIBase:           "https://graph.facebook.com/v22.0",
			SendDelayMinMS:    800,
			SendDelayMaxMS:    2500,
			SendRatePerMinute: 40,
		},
		Provider: ProviderConfig{
			Name:            "gemini",
			Model:           "gemini-2.5-flash",
			TimeoutSeconds:  30,
			MaxOutputTokens: 300,
		},
		Budget: BudgetConfig{
			TokenThreshold: 500,
			HistoryLimit:   4,
		},
		Engine: EngineConfig{
			Workers: 4,
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "~/.brobot/brobot.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets: env only, never persisted.
	envStr("BROBOT_WHATSAPP_TOKEN", &c.WhatsApp.AccessToken)
	envStr("BROBOT_GEMINI_API_KEY", &c.Provider.APIKey)
	envStr("BROBOT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("BROBOT_TELEGRAM_TOKEN", &c.Ops.TelegramToken)

	envStr("BROBOT_VERIFY_TOKEN", &c.Gateway.VerifyToken)
	envStr("BROBOT_PHONE_NUMBER_ID", &c.WhatsApp.PhoneNumberID)
	envStr("BROBOT_MODEL", &c.Provider.Model)
	envStr("BROBOT_CATALOG_PATH", &c.Catalog.Path)
	envStr("BROBOT_BOOKING_LINK", &c.Links.Booking)
	envStr("BROBOT_MAPS_LINK", &c.Links.Maps)
	envStr("BROBOT_HANDOFF_CONTACT", &c.Policy.HandoffContact)
	envStr("BROBOT_OPS_NUMBER", &c.Ops.WhatsAppNumber)

	envStr("BROBOT_HOST", &c.Gateway.Host)
	if v := os.Getenv("BROBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("BROBOT_DB_DRIVER", &c.Database.Driver)
	envStr("BROBOT_SQLITE_PATH", &c.Database.SQLitePath)
	if c.Database.PostgresDSN != "" && os.Getenv("BROBOT_DB_DRIVER") == "" {
		c.Database.Driver = "postgres"
	}

	if v := os.Getenv("BROBOT_OPS_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Ops.TelegramChatID = id
		}
	}

	// Telemetry
	envStr("BROBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("BROBOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("BROBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("BROBOT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BROBOT_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Validate checks that required settings for running the gateway are present.
func (c *Config) Validate() error {
	var missing []string
	if c.WhatsApp.PhoneNumberID == "" && c.WhatsApp.BridgeURL == "" {
		missing = append(missing, "whatsapp.phone_number_id (or whatsapp.bridge_url)")
	}
	if c.WhatsApp.AccessToken == "" && c.WhatsApp.BridgeURL == "" {
		missing = append(missing, "BROBOT_WHATSAPP_TOKEN")
	}
	if c.Provider.APIKey == "" {
		missing = append(missing, "BROBOT_GEMINI_API_KEY")
	}
	if c.Gateway.VerifyToken == "" {
		missing = append(missing, "gateway.verify_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}
