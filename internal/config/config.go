package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ebarretto/sideload/internal/paths"
)

// Config represents the application configuration
type Config struct {
	Install InstallConfig `mapstructure:"install"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Batch   BatchConfig   `mapstructure:"batch"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// InstallConfig controls installation subprocess behavior
type InstallConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Elevate        string `mapstructure:"elevate"`
}

// Timeout returns the installation timeout as a duration
func (c InstallConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VerifyConfig controls the verification pipeline
type VerifyConfig struct {
	Integrity                bool   `mapstructure:"integrity"`
	Signature                bool   `mapstructure:"signature"`
	MinSizeBytes             int64  `mapstructure:"min_size_bytes"`
	StructuralTimeoutSeconds int    `mapstructure:"structural_timeout_seconds"`
	SignatureTimeoutSeconds  int    `mapstructure:"signature_timeout_seconds"`
	DefaultAlgorithm         string `mapstructure:"default_algorithm"`
	Keyring                  string `mapstructure:"keyring"`
}

// StructuralTimeout returns the structural inspection timeout
func (c VerifyConfig) StructuralTimeout() time.Duration {
	return time.Duration(c.StructuralTimeoutSeconds) * time.Second
}

// SignatureTimeout returns the signature tool timeout
func (c VerifyConfig) SignatureTimeout() time.Duration {
	return time.Duration(c.SignatureTimeoutSeconds) * time.Second
}

// RetryConfig holds the default retry policy plus the two tuned profiles
type RetryConfig struct {
	RetryProfile `mapstructure:",squash"`
	Network      RetryProfile `mapstructure:"network"`
	Install      RetryProfile `mapstructure:"install"`
}

// RetryProfile parameterizes one bounded exponential backoff policy
type RetryProfile struct {
	MaxAttempts    int     `mapstructure:"max_attempts"`
	InitialDelayMs int     `mapstructure:"initial_delay_ms"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
	MaxDelayMs     int     `mapstructure:"max_delay_ms"`
}

// InitialDelay returns the first backoff delay
func (p RetryProfile) InitialDelay() time.Duration {
	return time.Duration(p.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling
func (p RetryProfile) MaxDelay() time.Duration {
	return time.Duration(p.MaxDelayMs) * time.Millisecond
}

// BatchConfig controls batch orchestration behavior
type BatchConfig struct {
	MaxRecommended    int    `mapstructure:"max_recommended"`
	ContinueOnFailure string `mapstructure:"continue_on_failure"`
}

// HistoryConfig controls the installation history ledger
type HistoryConfig struct {
	DBFile     string `mapstructure:"db_file"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	NoColor bool   `mapstructure:"no_color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(paths.NewResolver().ConfigDir())
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("SIDELOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	return decode()
}

// LoadFile loads configuration from an explicit file instead of the default
// search path. Unlike Load, a missing file is an error here: the user asked
// for this exact file.
func LoadFile(path string) (*Config, error) {
	viper.SetConfigFile(path)

	setDefaults()

	viper.SetEnvPrefix("SIDELOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return decode()
}

// decode unmarshals the merged viper state and expands user paths
func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.History.DBFile = expandPath(cfg.History.DBFile)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.Verify.Keyring = expandPath(cfg.Verify.Keyring)

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	resolver := paths.NewResolver()

	viper.SetDefault("install.timeout_seconds", 300)
	viper.SetDefault("install.elevate", "pkexec")

	viper.SetDefault("verify.integrity", true)
	viper.SetDefault("verify.signature", false)
	viper.SetDefault("verify.min_size_bytes", 1024)
	viper.SetDefault("verify.structural_timeout_seconds", 10)
	viper.SetDefault("verify.signature_timeout_seconds", 30)
	viper.SetDefault("verify.default_algorithm", "sha256")
	viper.SetDefault("verify.keyring", "")

	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_delay_ms", 1000)
	viper.SetDefault("retry.backoff_factor", 2.0)
	viper.SetDefault("retry.max_delay_ms", 30000)
	viper.SetDefault("retry.network.max_attempts", 5)
	viper.SetDefault("retry.network.initial_delay_ms", 2000)
	viper.SetDefault("retry.network.backoff_factor", 2.0)
	viper.SetDefault("retry.network.max_delay_ms", 60000)
	viper.SetDefault("retry.install.max_attempts", 2)
	viper.SetDefault("retry.install.initial_delay_ms", 3000)
	viper.SetDefault("retry.install.backoff_factor", 1.5)
	viper.SetDefault("retry.install.max_delay_ms", 10000)

	viper.SetDefault("batch.max_recommended", 20)
	viper.SetDefault("batch.continue_on_failure", "ask")

	viper.SetDefault("history.db_file", resolver.DefaultDBFile())
	viper.SetDefault("history.max_entries", 1000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", resolver.DefaultLogFile())
	viper.SetDefault("logging.no_color", false)
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	path = os.ExpandEnv(path)

	return path
}
