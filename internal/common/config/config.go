// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	WhatsApp      WhatsAppConfig          `mapstructure:"whatsapp"`
	AntiBan       AntiBanConfig           `mapstructure:"anti_ban"`
	Leads         LeadsConfig             `mapstructure:"leads"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Events        EventsConfig            `mapstructure:"events"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ProductIndex string   `mapstructure:"product_index"`
	URL          string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Sales Automation Sections ---

// WhatsAppConfig points at the HTTP gateway that owns the WhatsApp session.
type WhatsAppConfig struct {
	GatewayURL      string `mapstructure:"gateway_url"`
	GatewayToken    string `mapstructure:"gateway_token"`
	WebhookPath     string `mapstructure:"webhook_path"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	DispatchTimeout int    `mapstructure:"dispatch_timeout"` // milliseconds
	StatusInterval  int    `mapstructure:"status_interval"`  // milliseconds
}

// AntiBanConfig holds the pacing defaults used when the settings table has no value.
type AntiBanConfig struct {
	MinDelay      int  `mapstructure:"min_delay"` // milliseconds
	MaxDelay      int  `mapstructure:"max_delay"` // milliseconds
	TypingEnabled bool `mapstructure:"typing_enabled"`
	ThinkingMin   int  `mapstructure:"thinking_min"` // milliseconds
	ThinkingMax   int  `mapstructure:"thinking_max"` // milliseconds
}

// LeadsConfig configures the hot-lead scorer.
type LeadsConfig struct {
	Window           int  `mapstructure:"window"` // milliseconds
	DefaultThreshold int  `mapstructure:"default_threshold"`
	NotifierTimeout  int  `mapstructure:"notifier_timeout"` // milliseconds
	DistributedLock  bool `mapstructure:"distributed_lock"`
	LockTTL          int  `mapstructure:"lock_ttl"` // milliseconds
}

// IntegrationConfig holds settings for alert channels and the CRM.
type IntegrationConfig struct {
	Telegram struct {
		Enabled bool   `mapstructure:"enabled"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"telegram"`

	Zoho struct {
		Enabled   bool   `mapstructure:"enabled"`
		BaseURL   string `mapstructure:"base_url"`
		AuthToken string `mapstructure:"oauth_token"`
	} `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool     `mapstructure:"enabled"`
			FromEmail string   `mapstructure:"from_email"`
			To        []string `mapstructure:"to"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled      bool     `mapstructure:"enabled"`
			PhoneNumbers []string `mapstructure:"phone_numbers"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		Temperature float64 `mapstructure:"temperature"`
		MaxTokens   int     `mapstructure:"max_tokens"`
		Timeout     int     `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// EventsConfig names the Redis channel UI clients subscribe to.
type EventsConfig struct {
	Channel string `mapstructure:"channel"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
