package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Oxylabs    OxylabsConfig    `mapstructure:"oxylabs"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OxylabsConfig holds scraping provider configuration
type OxylabsConfig struct {
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	BaseURL           string        `mapstructure:"base_url"`
	Domain            string        `mapstructure:"domain"`
	Locale            string        `mapstructure:"locale"`
	GeoLocation       string        `mapstructure:"geo_location"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	MaxResults        int           `mapstructure:"max_results"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// Configured reports whether both credentials are present
func (c OxylabsConfig) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// GeminiConfig holds language model configuration
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxOffers   int           `mapstructure:"max_offers"`
	Temperature float32       `mapstructure:"temperature"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "none", "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
	Burst int `mapstructure:"burst"`
}

// NormalizerConfig holds offer normalization settings
type NormalizerConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

// MatchingConfig holds relevance filter settings
type MatchingConfig struct {
	MinRelevance      float64 `mapstructure:"min_relevance"`
	ExcludeMultipacks bool    `mapstructure:"exclude_multipacks"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envAliases binds config keys to unprefixed variable names used by existing deployments
var envAliases = map[string][]string{
	"oxylabs.username": {"OXYLABS_USERNAME"},
	"oxylabs.password": {"OXYLABS_PASSWORD"},
	"gemini.api_key":   {"GEMINI_API_KEY", "GEMINI_KEY"},
	"cache.redis_url":  {"REDIS_URL"},
	"server.port":      {"PORT"},
}

// Load loads configuration from an optional .env file, environment variables
// and an optional config file. Missing provider credentials are not an error.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/price-checker/")

	// Environment variable settings
	v.SetEnvPrefix("PRICECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvAliases(v); err != nil {
		return nil, err
	}

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env without overriding variables already set
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// bindEnvAliases makes the prefixed name win over the aliases
func bindEnvAliases(v *viper.Viper) error {
	for key, aliases := range envAliases {
		prefixed := "PRICECHECK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, prefixed}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Oxylabs defaults
	v.SetDefault("oxylabs.username", "")
	v.SetDefault("oxylabs.password", "")
	v.SetDefault("oxylabs.base_url", "https://realtime.oxylabs.io")
	v.SetDefault("oxylabs.domain", "com.mx")
	v.SetDefault("oxylabs.locale", "es-mx")
	v.SetDefault("oxylabs.geo_location", "Mexico")
	v.SetDefault("oxylabs.timeout", "20s")
	v.SetDefault("oxylabs.retry_backoff", "1s")
	v.SetDefault("oxylabs.max_results", 20)
	v.SetDefault("oxylabs.requests_per_second", 5)
	v.SetDefault("oxylabs.burst", 5)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.timeout", "12s")
	v.SetDefault("gemini.max_offers", 20)
	v.SetDefault("gemini.temperature", 0.1)

	// Cache defaults
	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "price-checker:")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("normalizer.default_currency", "MXN")

	v.SetDefault("matching.min_relevance", 0.0)
	v.SetDefault("matching.exclude_multipacks", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive, got: %s", config.Server.RequestTimeout)
	}

	// Two provider attempts, the backoff between them and the refinement call
	// must fit inside the request deadline
	worstCase := 2*config.Oxylabs.Timeout + config.Oxylabs.RetryBackoff + config.Gemini.Timeout
	if worstCase >= config.Server.RequestTimeout {
		return fmt.Errorf("oxylabs timeout %s with one retry plus gemini timeout %s does not fit in request timeout %s",
			config.Oxylabs.Timeout, config.Gemini.Timeout, config.Server.RequestTimeout)
	}

	switch config.Cache.Type {
	case "none", "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'none', 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	if config.Matching.MinRelevance < 0 || config.Matching.MinRelevance > 1 {
		return fmt.Errorf("matching min relevance must be between 0 and 1, got: %v", config.Matching.MinRelevance)
	}

	return nil
}

// CredentialStatus describes a secret without revealing it
type CredentialStatus struct {
	Set    bool `json:"set"`
	Length int  `json:"length"`
}

func statusOf(secret string) CredentialStatus {
	return CredentialStatus{Set: secret != "", Length: len(secret)}
}

// Credentials reports which credentials are present and their lengths
func (c *Config) Credentials() map[string]CredentialStatus {
	return map[string]CredentialStatus{
		"oxylabs_username": statusOf(c.Oxylabs.Username),
		"oxylabs_password": statusOf(c.Oxylabs.Password),
		"gemini_api_key":   statusOf(c.Gemini.APIKey),
	}
}
