// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig                     `mapstructure:"app"`
	Camunda       CamundaConfig                 `mapstructure:"camunda"`
	Database      DatabaseConfig                `mapstructure:"database"`
	Assistant     AssistantConfig               `mapstructure:"assistant"`
	Model         ModelConfig                   `mapstructure:"model"`
	Validator     ValidatorConfig               `mapstructure:"validator"`
	Jurisdictions map[string]JurisdictionConfig `mapstructure:"jurisdictions"`
	FiscalAPI     FiscalAPIConfig               `mapstructure:"fiscal_api"`
	Notifications NotificationConfig            `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig       `mapstructure:"workers"`
	Logging       LoggingConfig                 `mapstructure:"logging"`
	Tracing       TracingConfig                 `mapstructure:"tracing"`
	Registry      RegistryConfig                `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HealthPort  int    `mapstructure:"health_port"`
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
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses         []string `mapstructure:"addresses"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	CounterpartyIndex string   `mapstructure:"counterparty_index"`
}

// Enabled reports whether a search cluster is configured; name search falls back to Postgres otherwise.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	QuotaTTL int    `mapstructure:"quota_ttl"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Assistant pipeline ---

// AssistantConfig tunes the command orchestrator.
type AssistantConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ModelTimeout        int     `mapstructure:"model_timeout"` // milliseconds
	HistoryWindow       int     `mapstructure:"history_window"`
	PendingTTL          int     `mapstructure:"pending_ttl"` // milliseconds
	SearchLimit         int     `mapstructure:"search_limit"`
}

// ModelConfig selects and configures the external language model provider.
type ModelConfig struct {
	Provider   string  `mapstructure:"provider"` // "none", "gateway" or "gemini"
	BaseURL    string  `mapstructure:"base_url"`
	APIKey     string  `mapstructure:"api_key"`
	Name       string  `mapstructure:"name"`
	Timeout    int     `mapstructure:"timeout"` // milliseconds
	MaxRetries int     `mapstructure:"max_retries"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests per second
	Burst      int     `mapstructure:"burst"`
}

// ValidatorConfig tunes the action validator thresholds.
type ValidatorConfig struct {
	QuotaWarningThreshold   int     `mapstructure:"quota_warning_threshold"`
	CertificateWarningDays  int     `mapstructure:"certificate_warning_days"`
	CancellationWarningMins int     `mapstructure:"cancellation_warning_minutes"`
	MinJustificationLength  int     `mapstructure:"min_justification_length"`
	HealthTTL               int     `mapstructure:"health_ttl"` // milliseconds
	Concurrency             int     `mapstructure:"concurrency"`
	MEIAnnualLimit          float64 `mapstructure:"mei_annual_limit"`
}

// JurisdictionConfig describes one municipality keyed by its IBGE code.
type JurisdictionConfig struct {
	Name                      string `mapstructure:"name"`
	Supported                 bool   `mapstructure:"supported"`
	SupportsCancellation      bool   `mapstructure:"supports_cancellation"`
	CancellationDeadlineHours int    `mapstructure:"cancellation_deadline_hours"`
}

// FiscalAPIConfig points at the fiscal platform that emits and cancels NFS-e.
type FiscalAPIConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// NotificationConfig holds the AWS notification settings for execution outcomes.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	Email  struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Events struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig configures the Jaeger exporter.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// RegistryConfig locates the generated operation registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
