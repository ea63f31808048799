// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<env>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

// Defaults returns an in-process configuration with every default applied and no
// infrastructure configured. It skips validation.
func Defaults() *Config {
	cfg := &Config{Workers: map[string]WorkerConfig{}}
	applyDefaults(cfg)
	return cfg
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that deployments inject as plain env vars.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Model.APIKey, "MODEL_API_KEY", "GEMINI_API_KEY")
	setIfEmpty(&cfg.FiscalAPI.ClientID, "FISCAL_API_CLIENT_ID")
	setIfEmpty(&cfg.FiscalAPI.ClientSecret, "FISCAL_API_CLIENT_SECRET")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func setIfEmpty(dst *string, envs ...string) {
	if *dst != "" {
		return
	}
	for _, name := range envs {
		if val := os.Getenv(name); val != "" {
			*dst = val
			return
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fiscal-assistant"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.HealthPort == 0 {
		cfg.App.HealthPort = 8080
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.CounterpartyIndex == "" {
		cfg.Database.Elasticsearch.CounterpartyIndex = "counterparties"
	}
	if cfg.Database.Redis.QuotaTTL == 0 {
		cfg.Database.Redis.QuotaTTL = 60000
	}

	if cfg.Assistant.ConfidenceThreshold == 0 {
		cfg.Assistant.ConfidenceThreshold = 0.6
	}
	if cfg.Assistant.ModelTimeout == 0 {
		cfg.Assistant.ModelTimeout = 8000
	}
	if cfg.Assistant.HistoryWindow == 0 {
		cfg.Assistant.HistoryWindow = 10
	}
	if cfg.Assistant.PendingTTL == 0 {
		cfg.Assistant.PendingTTL = 600000
	}
	if cfg.Assistant.SearchLimit == 0 {
		cfg.Assistant.SearchLimit = 5
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "none"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gemini-2.5-flash"
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 8000
	}
	if cfg.Model.RateLimit == 0 {
		cfg.Model.RateLimit = 5
	}
	if cfg.Model.Burst == 0 {
		cfg.Model.Burst = 5
	}

	if cfg.Validator.QuotaWarningThreshold == 0 {
		cfg.Validator.QuotaWarningThreshold = 5
	}
	if cfg.Validator.CertificateWarningDays == 0 {
		cfg.Validator.CertificateWarningDays = 30
	}
	if cfg.Validator.CancellationWarningMins == 0 {
		cfg.Validator.CancellationWarningMins = 120
	}
	if cfg.Validator.MinJustificationLength == 0 {
		cfg.Validator.MinJustificationLength = 15
	}
	if cfg.Validator.HealthTTL == 0 {
		cfg.Validator.HealthTTL = 300000
	}
	if cfg.Validator.Concurrency == 0 {
		cfg.Validator.Concurrency = 4
	}
	if cfg.Validator.MEIAnnualLimit == 0 {
		cfg.Validator.MEIAnnualLimit = 81000
	}

	if len(cfg.Jurisdictions) == 0 {
		cfg.Jurisdictions = DefaultJurisdictions()
	}

	if cfg.FiscalAPI.Timeout == 0 {
		cfg.FiscalAPI.Timeout = 30000
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "sa-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 0.1
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "configs/operation-registry.json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// DefaultJurisdictions is used when no municipality table is configured.
func DefaultJurisdictions() map[string]JurisdictionConfig {
	return map[string]JurisdictionConfig{
		"3550308": {Name: "São Paulo", Supported: true, SupportsCancellation: true, CancellationDeadlineHours: 720},
		"3304557": {Name: "Rio de Janeiro", Supported: true, SupportsCancellation: true, CancellationDeadlineHours: 168},
		"3106200": {Name: "Belo Horizonte", Supported: true, SupportsCancellation: true, CancellationDeadlineHours: 720},
		"4106902": {Name: "Curitiba", Supported: true, SupportsCancellation: true, CancellationDeadlineHours: 24},
		"5300108": {Name: "Brasília", Supported: true, SupportsCancellation: false},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Assistant.ConfidenceThreshold < 0 || cfg.Assistant.ConfidenceThreshold > 1 {
		return fmt.Errorf("assistant.confidence_threshold must be within [0,1]")
	}

	switch cfg.Model.Provider {
	case "none":
	case "gateway":
		if cfg.Model.BaseURL == "" {
			return fmt.Errorf("model.base_url is required for the gateway provider")
		}
	case "gemini":
		if cfg.Model.APIKey == "" {
			return fmt.Errorf("model.api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("model.provider %q is not supported", cfg.Model.Provider)
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	for code, j := range cfg.Jurisdictions {
		if j.SupportsCancellation && j.CancellationDeadlineHours <= 0 {
			return fmt.Errorf("jurisdictions.%s.cancellation_deadline_hours must be positive", code)
		}
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
