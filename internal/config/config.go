package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML, with environment
// variable overrides applied on top.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Persistence: exactly one of databaseURL (Postgres), redisAddr (KV
	// blobs in Redis), or dataDir (KV blobs on disk) must be set.
	// redisAddr is also used by the upload rate limiter when present.
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	DataDir       string `yaml:"dataDir"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MaxUploadBytes           int64    `yaml:"maxUploadBytes"`
	UploadRateLimitPerMinute int      `yaml:"uploadRateLimitPerMinute"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`

	AMQPURL                 string `yaml:"amqpURL"`
	ReminderExchange        string `yaml:"reminderExchange"`
	ReminderIntervalMinutes int    `yaml:"reminderIntervalMinutes"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("MISTAKEBOOK_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MISTAKEBOOK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MISTAKEBOOK_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MISTAKEBOOK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MISTAKEBOOK_MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MISTAKEBOOK_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MISTAKEBOOK_MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MISTAKEBOOK_MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MISTAKEBOOK_MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("MISTAKEBOOK_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MISTAKEBOOK_UPLOAD_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UploadRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MISTAKEBOOK_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("MISTAKEBOOK_AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MISTAKEBOOK_REMINDER_EXCHANGE"); v != "" {
		cfg.ReminderExchange = v
	}
	if v := os.Getenv("MISTAKEBOOK_REMINDER_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReminderIntervalMinutes = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" && cfg.RedisAddr == "" && cfg.DataDir == "" {
		return errors.New("config: persistence is required (databaseURL, redisAddr, or dataDir)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required for uploaded binaries")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required")
	}
	if cfg.UploadRateLimitPerMinute < 0 {
		return errors.New("config: uploadRateLimitPerMinute must be >= 0")
	}
	if cfg.UploadRateLimitPerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when upload rate limiting is enabled")
	}
	if cfg.ReminderIntervalMinutes < 0 {
		return errors.New("config: reminderIntervalMinutes must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
