// Package config defines the root configuration for the Brobot gateway.
// Config is loaded from a JSON5 file with environment variable overlay;
// secrets (API keys, DSNs, tokens) come from the environment only and are
// never written back to the config file.
package config

import "time"

// Config is the root configuration for the Brobot gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Provider  ProviderConfig  `json:"provider"`
	Catalog   CatalogConfig   `json:"catalog"`
	Links     LinksConfig     `json:"links"`
	Policy    PolicyConfig    `json:"policy"`
	Budget    BudgetConfig    `json:"budget"`
	Engine    EngineConfig    `json:"engine,omitempty"`
	Ops       OpsConfig       `json:"ops,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// GatewayConfig configures the inbound webhook HTTP server.
type GatewayConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	VerifyToken  string `json:"verify_token"`             // hub.verify_token expected on GET /webhook
	RateLimitRPM int    `json:"rate_limit_rpm,omitempty"` // per-sender webhook rate limit
}

// WhatsAppConfig configures the WhatsApp delivery channel.
// AccessToken is NEVER read from the config file — env BROBOT_WHATSAPP_TOKEN only.
type WhatsAppConfig struct {
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"-"`                    // from env BROBOT_WHATSAPP_TOKEN only
	APIBase       string `json:"api_base,omitempty"`   // default https://graph.facebook.com/v22.0
	BridgeURL     string `json:"bridge_url,omitempty"` // optional whatsapp-web.js bridge (WebSocket)

	// Humanizing send delay: outbound replies wait a random duration in
	// [SendDelayMinMS, SendDelayMaxMS] before delivery. Zero disables.
	SendDelayMinMS int `json:"send_delay_min_ms,omitempty"`
	SendDelayMaxMS int `json:"send_delay_max_ms,omitempty"`

	// SendRatePerMinute bounds outbound API calls (0 = unlimited).
	SendRatePerMinute int `json:"send_rate_per_minute,omitempty"`
}

// ProviderConfig configures the generative text service.
// APIKey is NEVER read from the config file — env BROBOT_GEMINI_API_KEY only.
type ProviderConfig struct {
	Name            string `json:"name,omitempty"` // "gemini" (default)
	Model           string `json:"model,omitempty"`
	APIKey          string `json:"-"` // from env BROBOT_GEMINI_API_KEY only
	APIBase         string `json:"api_base,omitempty"`
	TimeoutSeconds  int    `json:"timeout_seconds,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

// Timeout returns the provider call deadline as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// CatalogConfig locates the curated response catalog.
// An empty path uses the embedded default catalog.
type CatalogConfig struct {
	Path      string `json:"path,omitempty"`
	HotReload bool   `json:"hot_reload,omitempty"` // watch the file and reload on change
}

// LinksConfig holds the live links substituted into response templates.
type LinksConfig struct {
	Booking string `json:"booking"` // scheduling/booking page
	Maps    string `json:"maps"`    // Google Maps location
}

// PolicyConfig configures the critical policy handler.
type PolicyConfig struct {
	HandoffContact string `json:"handoff_contact"` // phone number given to users on human handoff
}

// BudgetConfig configures the response budget controller.
type BudgetConfig struct {
	TokenThreshold int `json:"token_threshold,omitempty"` // default 500
	HistoryLimit   int `json:"history_limit,omitempty"`   // recent messages included in prompts (default 4)
}

// EngineConfig holds decision engine tunables.
type EngineConfig struct {
	Workers int `json:"workers,omitempty"` // concurrent message units of work (default 4)
}

// OpsConfig configures the operations notification sinks. Both are optional;
// with neither set, notifications are logged only.
// TelegramToken is NEVER read from the config file — env BROBOT_TELEGRAM_TOKEN only.
type OpsConfig struct {
	WhatsAppNumber string `json:"whatsapp_number,omitempty"` // operator WhatsApp number
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
	TelegramToken  string `json:"-"` // from env BROBOT_TELEGRAM_TOKEN only
}

// DatabaseConfig selects the conversation store backend.
// PostgresDSN is NEVER read from the config file — env BROBOT_POSTGRES_DSN only.
type DatabaseConfig struct {
	Driver      string `json:"driver,omitempty"`      // "sqlite" (default) or "postgres"
	SQLitePath  string `json:"sqlite_path,omitempty"` // default ~/.brobot/brobot.db
	PostgresDSN string `json:"-"`                     // from env BROBOT_POSTGRES_DSN only
}

// TelemetryConfig configures OpenTelemetry OTLP export for traces.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"` // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"` // default "brobot-gateway"
	Headers     map[string]string `json:"headers,omitempty"`
}
