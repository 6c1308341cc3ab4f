package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/jailstore/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JAILSTORE_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Store      StoreConfig      `yaml:"store"`
	Slots      SlotsConfig      `yaml:"slots"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Retry      RetryConfig      `yaml:"retry"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

// StoreConfig selects the backend and the jailed working context.
type StoreConfig struct {
	URI      string `yaml:"uri"`
	Jail     string `yaml:"jail"`
	Pwd      string `yaml:"pwd"`
	ReadOnly bool   `yaml:"read_only"`
}

// SlotsConfig configures the key-value stores behind slot-persisted
// backends.
type SlotsConfig struct {
	Slot        string            `yaml:"slot"`
	Compression CompressionConfig `yaml:"compression"`
	QuotaBytes  int64             `yaml:"quota_bytes"`
	Badger      BadgerConfig      `yaml:"badger"`
	S3          S3Config          `yaml:"s3"`
	Breaker     BreakerConfig     `yaml:"circuit_breaker"`
}

// CompressionConfig represents compression settings
type CompressionConfig struct {
	Enabled bool `yaml:"enabled"`
	Level   int  `yaml:"level"`
}

// BadgerConfig represents the embedded badger store settings
type BadgerConfig struct {
	Directory string `yaml:"directory"`
	InMemory  bool   `yaml:"in_memory"`
}

// S3Config represents S3 slot store settings
type S3Config struct {
	Bucket             string        `yaml:"bucket"`
	Prefix             string        `yaml:"prefix"`
	Region             string        `yaml:"region"`
	Endpoint           string        `yaml:"endpoint"`
	ForcePathStyle     bool          `yaml:"force_path_style"`
	MaxRetries         int           `yaml:"max_retries"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	EnableAcceleration bool          `yaml:"enable_acceleration"`
	StorageClass       string        `yaml:"storage_class"`
	MaxObjectSize      int64         `yaml:"max_object_size"`
}

// BreakerConfig guards remote slot stores with a circuit breaker
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// RetryConfig represents retry settings for loading remote slots
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	badgerDir := filepath.Join(".jailstore", "badger")
	if home, err := os.UserHomeDir(); err == nil {
		badgerDir = filepath.Join(home, badgerDir)
	}

	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Store: StoreConfig{
			URI:  "memory://default",
			Jail: "/",
			Pwd:  "/",
		},
		Slots: SlotsConfig{
			Slot: "tree",
			Compression: CompressionConfig{
				Enabled: false,
				Level:   3,
			},
			Badger: BadgerConfig{
				Directory: badgerDir,
			},
			S3: S3Config{
				Prefix:         "jailstore/",
				Region:         "us-east-1",
				MaxRetries:     3,
				RequestTimeout: 30 * time.Second,
				StorageClass:   "STANDARD",
			},
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9090,
				Path:      "/metrics",
				Namespace: "jailstore",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadError("failed to read config file", filename, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return loadError("failed to parse config file", filename, err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := getenv("LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := getenv("LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := getenv("LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	// Store settings
	if val := getenv("URI"); val != "" {
		c.Store.URI = val
	}
	if val := getenv("JAIL"); val != "" {
		c.Store.Jail = val
	}
	if val := getenv("PWD"); val != "" {
		c.Store.Pwd = val
	}
	if val := getenv("READ_ONLY"); val != "" {
		c.Store.ReadOnly = strings.ToLower(val) == "true"
	}

	// Slot settings
	if val := getenv("SLOT"); val != "" {
		c.Slots.Slot = val
	}
	if val := getenv("COMPRESSION_ENABLED"); val != "" {
		c.Slots.Compression.Enabled = strings.ToLower(val) == "true"
	}
	if val := getenv("QUOTA_BYTES"); val != "" {
		quota, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return envError("QUOTA_BYTES", val, err)
		}
		c.Slots.QuotaBytes = quota
	}
	if val := getenv("BADGER_DIR"); val != "" {
		c.Slots.Badger.Directory = val
	}
	if val := getenv("S3_BUCKET"); val != "" {
		c.Slots.S3.Bucket = val
	}
	if val := getenv("S3_REGION"); val != "" {
		c.Slots.S3.Region = val
	}
	if val := getenv("S3_ENDPOINT"); val != "" {
		c.Slots.S3.Endpoint = val
	}

	// Monitoring settings
	if val := getenv("METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := getenv("METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return envError("METRICS_PORT", val, err)
		}
		c.Monitoring.Metrics.Port = port
	}

	// Retry settings
	if val := getenv("RETRY_MAX_ATTEMPTS"); val != "" {
		attempts, err := strconv.Atoi(val)
		if err != nil {
			return envError("RETRY_MAX_ATTEMPTS", val, err)
		}
		c.Retry.MaxAttempts = attempts
	}
	if val := getenv("RETRY_INITIAL_DELAY"); val != "" {
		delay, err := time.ParseDuration(val)
		if err != nil {
			return envError("RETRY_INITIAL_DELAY", val, err)
		}
		c.Retry.InitialDelay = delay
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return loadError("failed to marshal config", filename, err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return loadError("failed to create config directory", filename, err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return loadError("failed to write config file", filename, err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !contains(validLogLevels, c.Global.LogLevel) {
		return invalid("global.log_level", fmt.Sprintf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	validFormats := []string{"text", "json"}
	if !contains(validFormats, c.Global.LogFormat) {
		return invalid("global.log_format", fmt.Sprintf("invalid log_format: %s (must be one of: %s)",
			c.Global.LogFormat, strings.Join(validFormats, ", ")))
	}

	if c.Store.URI == "" {
		return invalid("store.uri", "uri cannot be empty")
	}
	if !strings.HasPrefix(c.Store.Jail, "/") {
		return invalid("store.jail", fmt.Sprintf("jail must be an absolute path, got %q", c.Store.Jail))
	}

	if c.Slots.Slot == "" {
		return invalid("slots.slot", "slot name cannot be empty")
	}
	if c.Slots.QuotaBytes < 0 {
		return invalid("slots.quota_bytes", "quota_bytes cannot be negative")
	}
	if c.Slots.Compression.Enabled && (c.Slots.Compression.Level < 1 || c.Slots.Compression.Level > 22) {
		return invalid("slots.compression.level", "compression level must be between 1 and 22")
	}
	if c.Slots.S3.MaxObjectSize < 0 {
		return invalid("slots.s3.max_object_size", "max_object_size cannot be negative")
	}

	if c.Slots.Breaker.Enabled && c.Slots.Breaker.Timeout <= 0 {
		return invalid("slots.circuit_breaker.timeout", "circuit breaker timeout must be positive")
	}

	if c.Monitoring.Metrics.Enabled {
		if c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535 {
			return invalid("monitoring.metrics.port", fmt.Sprintf("invalid metrics port: %d", c.Monitoring.Metrics.Port))
		}
		if !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
			return invalid("monitoring.metrics.path", "metrics path must start with /")
		}
	}

	if c.Retry.MaxAttempts <= 0 {
		return invalid("retry.max_attempts", "max_attempts must be greater than 0")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return invalid("retry.max_delay", "max_delay cannot be shorter than initial_delay")
	}

	return nil
}

func getenv(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func invalid(field, message string) error {
	return errors.NewError(errors.ErrCodeInvalidConfig, message).
		WithComponent("config").
		WithOperation("validate").
		WithContext("field", field)
}

func loadError(message, filename string, cause error) error {
	return errors.NewError(errors.ErrCodeConfigLoad, message).
		WithComponent("config").
		WithOperation("load").
		WithContext("file", filename).
		WithCause(cause)
}

func envError(key, value string, cause error) error {
	return errors.NewError(errors.ErrCodeConfigLoad, fmt.Sprintf("invalid value for %s%s: %q", EnvPrefix, key, value)).
		WithComponent("config").
		WithOperation("load_env").
		WithContext("variable", EnvPrefix+key).
		WithCause(cause)
}
