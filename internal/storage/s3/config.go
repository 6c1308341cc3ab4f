package s3

import (
	"time"
)

// Storage classes accepted in Config.StorageClass.
const (
	StorageClassStandard    = "STANDARD"
	StorageClassStandardIA  = "STANDARD_IA"
	StorageClassOneZoneIA   = "ONEZONE_IA"
	StorageClassIntelligent = "INTELLIGENT_TIERING"
)

// Config represents S3 slot store configuration
type Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CargoShip accelerated uploads, with PutObject as fallback
	EnableAcceleration bool `yaml:"enable_acceleration"`
	Concurrency        int  `yaml:"concurrency"`

	StorageClass string `yaml:"storage_class"`

	// MaxObjectSize rejects larger slots with ErrQuotaExceeded (0 = no limit)
	MaxObjectSize int64 `yaml:"max_object_size"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Prefix:         "jailstore/",
		Region:         "us-east-1",
		MaxRetries:     3,
		RequestTimeout: 30 * time.Second,
		Concurrency:    4,
		StorageClass:   StorageClassStandard,
	}
}

func (c *Config) applyDefaults() {
	defaults := NewDefaultConfig()
	if c.Region == "" {
		c.Region = defaults.Region
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.StorageClass == "" {
		c.StorageClass = defaults.StorageClass
	}
}
