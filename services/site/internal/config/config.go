package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location; SITE_CONFIG overrides it.
var ConfigPath = "config.yaml"

const (
	defaultPort         = "3000"
	defaultMaxBodyBytes = 20 << 20
	defaultSessionTTL   = "24h"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	StaticDir         string   `yaml:"staticDir"`
	DataDir           string   `yaml:"dataDir"`
	LocalesDir        string   `yaml:"localesDir"`
	FallbackLang      string   `yaml:"fallbackLang"`
	AdminUsername     string   `yaml:"adminUsername"`
	AdminPassword     string   `yaml:"adminPassword"`
	SessionTTL        string   `yaml:"sessionTTL"`
	SessionBackend    string   `yaml:"sessionBackend"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	MaxBodyBytes      int64    `yaml:"maxBodyBytes"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	MinioEndpoint     string   `yaml:"minioEndpoint"`
	MinioAccessKey    string   `yaml:"minioAccessKey"`
	MinioSecretKey    string   `yaml:"minioSecretKey"`
	MinioBucket       string   `yaml:"minioBucket"`
	MinioUseSSL       bool     `yaml:"minioUseSSL"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() FileConfig {
	return FileConfig{
		Port:           defaultPort,
		LogLevel:       "info",
		StaticDir:      "public",
		DataDir:        "data",
		LocalesDir:     "locales",
		FallbackLang:   "en",
		SessionTTL:     defaultSessionTTL,
		SessionBackend: SessionBackendMemory,
		MaxBodyBytes:   defaultMaxBodyBytes,
	}
}

// Load reads config from path (defaults to SITE_CONFIG, then config.yaml).
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (FileConfig, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("SITE_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("SITE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SITE_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("SITE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SITE_LOCALES_DIR"); v != "" {
		cfg.LocalesDir = v
	}
	if v := os.Getenv("SITE_FALLBACK_LANG"); v != "" {
		cfg.FallbackLang = strings.TrimSpace(v)
	}
	if v := os.Getenv("SITE_ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := os.Getenv("SITE_ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("SITE_SESSION_TTL"); v != "" {
		cfg.SessionTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("SITE_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SITE_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("SITE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
}

func validateConfig(cfg FileConfig) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("config: invalid port %q", cfg.Port)
	}
	if strings.TrimSpace(cfg.StaticDir) == "" || strings.TrimSpace(cfg.DataDir) == "" || strings.TrimSpace(cfg.LocalesDir) == "" {
		return errors.New("config: staticDir, dataDir and localesDir are required")
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	switch cfg.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required when sessionBackend is redis")
		}
	default:
		return fmt.Errorf("config: unknown sessionBackend %q", cfg.SessionBackend)
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("config: maxBodyBytes must be > 0")
	}
	if cfg.MinioEndpoint != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
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

// ParseSessionTTL parses the sliding session lifetime; empty means 24h.
func ParseSessionTTL(ttl string) (time.Duration, error) {
	if strings.TrimSpace(ttl) == "" {
		ttl = defaultSessionTTL
	}
	dur, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("config: sessionTTL must be > 0")
	}
	return dur, nil
}
