package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Documents  DocumentsConfig  `mapstructure:"documents"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	HRAddress string `mapstructure:"hr_address"`
}

// DocumentsConfig holds document generation and archival configuration
type DocumentsConfig struct {
	ArchiveDir   string        `mapstructure:"archive_dir"`
	CompanyName  string        `mapstructure:"company_name"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// OnboardingConfig holds workflow tunables
type OnboardingConfig struct {
	// SessionTTL is how long a session may run before expiring.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	StaleBatchSize int `mapstructure:"stale_batch_size"`

	// I9WindowDays is the I-9 Section 2 business-day window.
	I9WindowDays int `mapstructure:"i9_window_days"`

	// Holidays lists company holidays as YYYY-MM-DD dates.
	Holidays []string `mapstructure:"holidays"`

	// StateForms overrides the ordered required-forms list per work state.
	// States not listed use the builtin form order.
	StateForms map[string][]string `mapstructure:"state_forms"`

	// UpdateTokenTTL is the default lifetime of a form-update link.
	UpdateTokenTTL time.Duration `mapstructure:"update_token_ttl"`

	// UpdateTokenTTLByForm overrides the link lifetime per form type.
	UpdateTokenTTLByForm map[string]time.Duration `mapstructure:"update_token_ttl_by_form"`
}

// CredentialConfig is one provisioned API credential
type CredentialConfig struct {
	Token      string `mapstructure:"token"`
	ActorID    string `mapstructure:"actor_id"`
	Role       string `mapstructure:"role"`
	PropertyID string `mapstructure:"property_id"`
}

// AuthConfig holds provisioned credentials and the notification directory
type AuthConfig struct {
	Credentials []CredentialConfig `mapstructure:"credentials"`

	// Addresses maps actor IDs to deliverable mail addresses.
	Addresses map[string]string `mapstructure:"addresses"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/onboarding.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// SMTP defaults
	viper.SetDefault("smtp.port", 587)

	// Document defaults
	viper.SetDefault("documents.archive_dir", "archive")
	viper.SetDefault("documents.company_name", "Crestline Hotels")
	viper.SetDefault("documents.poll_interval", 10*time.Second)
	viper.SetDefault("documents.batch_size", 5)
	viper.SetDefault("documents.max_attempts", 5)
	viper.SetDefault("documents.retry_backoff", 30*time.Second)

	// Onboarding defaults
	viper.SetDefault("onboarding.session_ttl", 14*24*time.Hour)
	viper.SetDefault("onboarding.sweep_interval", 1*time.Hour)
	viper.SetDefault("onboarding.stale_batch_size", 100)
	viper.SetDefault("onboarding.i9_window_days", 3)
	viper.SetDefault("onboarding.update_token_ttl", 72*time.Hour)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")
	viper.BindEnv("smtp.hr_address", "HR_EMAIL")
	viper.BindEnv("documents.company_name", "COMPANY_NAME")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Mail delivery is optional, but a configured host needs sender and HR
	// addresses to be usable.
	if c.SMTP.Host != "" {
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required when smtp.host is set")
		}
		if c.SMTP.HRAddress == "" {
			return fmt.Errorf("smtp.hr_address is required when smtp.host is set")
		}
	}

	if c.Onboarding.SessionTTL <= 0 {
		return fmt.Errorf("onboarding.session_ttl must be positive")
	}
	if c.Onboarding.I9WindowDays <= 0 {
		return fmt.Errorf("onboarding.i9_window_days must be positive")
	}

	for i, cred := range c.Auth.Credentials {
		if cred.Token == "" || cred.ActorID == "" || cred.Role == "" {
			return fmt.Errorf("auth.credentials[%d] needs token, actor_id and role", i)
		}
	}

	return nil
}
