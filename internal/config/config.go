package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/atlas-packer/internal/packer"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultMaxRectangles  = 4096
	defaultMaxAtlases     = 100
	defaultMaxBodyBytes   = 1 << 20
	defaultRedisKeyPrefix = "atlas-packer:"

	// StorageMemory keeps atlases in process memory.
	StorageMemory = "memory"
	// StorageRedis keeps atlases in Redis.
	StorageRedis = "redis"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	LogLevel             string
	RateLimitRPS         float64
	RateLimitBurst       int
	MaxBodyBytes         int64

	Packer  PackerConfig
	Storage StorageConfig
}

// PackerConfig holds the layout settings shared by every packing request.
type PackerConfig struct {
	MaxRectangles  int
	ZeroSizePolicy packer.ZeroSizePolicy
	PowerOfTwo     bool
}

// StorageConfig selects and configures the atlas store.
type StorageConfig struct {
	Backend    string
	MaxAtlases int
	Redis      RedisConfig
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// yamlConfig represents the YAML configuration file structure. Pointer fields
// distinguish "absent" from zero values.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	MaxBodyBytes         *int64        `yaml:"max_body_bytes"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Packer               yamlPacker    `yaml:"packer"`
	Storage              yamlStorage   `yaml:"storage"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlPacker struct {
	MaxRectangles  *int   `yaml:"max_rectangles"`
	ZeroSizePolicy string `yaml:"zero_size_policy"`
	PowerOfTwo     *bool  `yaml:"power_of_two"`
}

type yamlStorage struct {
	Backend    string    `yaml:"backend"`
	MaxAtlases *int      `yaml:"max_atlases"`
	Redis      yamlRedis `yaml:"redis"`
}

type yamlRedis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        *int   `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	MaxRectangles  *int
	StorageBackend *string
	RedisAddr      *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             "info",
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		MaxBodyBytes:         defaultMaxBodyBytes,
		Packer: PackerConfig{
			MaxRectangles:  defaultMaxRectangles,
			ZeroSizePolicy: packer.ZeroSizePlace,
			PowerOfTwo:     true,
		},
		Storage: StorageConfig{
			Backend:    StorageMemory,
			MaxAtlases: defaultMaxAtlases,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: defaultRedisKeyPrefix,
			},
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{yamlCfg.ShutdownGracePeriod, "shutdown_grace_period", &cfg.ShutdownGracePeriod},
		{yamlCfg.ReadHeaderTimeout, "read_header_timeout", &cfg.ReadHeaderTimeout},
		{yamlCfg.WriteTimeout, "write_timeout", &cfg.WriteTimeout},
		{yamlCfg.IdleTimeout, "idle_timeout", &cfg.IdleTimeout},
		{yamlCfg.Storage.Redis.TTL, "storage.redis.ttl", &cfg.Storage.Redis.TTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *yamlCfg.MaxBodyBytes
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.Packer.MaxRectangles != nil {
		cfg.Packer.MaxRectangles = *yamlCfg.Packer.MaxRectangles
	}
	if yamlCfg.Packer.ZeroSizePolicy != "" {
		policy, err := packer.ParseZeroSizePolicy(yamlCfg.Packer.ZeroSizePolicy)
		if err != nil {
			return err
		}
		cfg.Packer.ZeroSizePolicy = policy
	}
	if yamlCfg.Packer.PowerOfTwo != nil {
		cfg.Packer.PowerOfTwo = *yamlCfg.Packer.PowerOfTwo
	}

	if yamlCfg.Storage.Backend != "" {
		cfg.Storage.Backend = yamlCfg.Storage.Backend
	}
	if yamlCfg.Storage.MaxAtlases != nil {
		cfg.Storage.MaxAtlases = *yamlCfg.Storage.MaxAtlases
	}
	if yamlCfg.Storage.Redis.Addr != "" {
		cfg.Storage.Redis.Addr = yamlCfg.Storage.Redis.Addr
	}
	if yamlCfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = yamlCfg.Storage.Redis.Password
	}
	if yamlCfg.Storage.Redis.DB != nil {
		cfg.Storage.Redis.DB = *yamlCfg.Storage.Redis.DB
	}
	if yamlCfg.Storage.Redis.KeyPrefix != "" {
		cfg.Storage.Redis.KeyPrefix = yamlCfg.Storage.Redis.KeyPrefix
	}

	return nil
}

// applyEnvConfig applies environment variable configuration. Malformed
// numeric values are ignored; an unknown zero size policy is an error.
func applyEnvConfig(cfg *Config) error {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}

	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if limit := env("MAX_RECTANGLES"); limit != "" {
		if value, err := strconv.Atoi(limit); err == nil {
			cfg.Packer.MaxRectangles = value
		}
	}

	if raw := env("ZERO_SIZE_POLICY"); raw != "" {
		policy, err := packer.ParseZeroSizePolicy(raw)
		if err != nil {
			return fmt.Errorf("ZERO_SIZE_POLICY: %w", err)
		}
		cfg.Packer.ZeroSizePolicy = policy
	}

	if raw := env("POWER_OF_TWO"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Packer.PowerOfTwo = value
		}
	}

	if backend := env("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if addr := env("REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}
	if password := env("REDIS_PASSWORD"); password != "" {
		cfg.Storage.Redis.Password = password
	}
	if db := env("REDIS_DB"); db != "" {
		if value, err := strconv.Atoi(db); err == nil {
			cfg.Storage.Redis.DB = value
		}
	}

	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.MaxRectangles != nil {
		cfg.Packer.MaxRectangles = *overrides.MaxRectangles
	}

	if overrides.StorageBackend != nil && *overrides.StorageBackend != "" {
		cfg.Storage.Backend = *overrides.StorageBackend
	}

	if overrides.RedisAddr != nil && *overrides.RedisAddr != "" {
		cfg.Storage.Redis.Addr = *overrides.RedisAddr
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if cfg.Packer.MaxRectangles < 0 {
		return fmt.Errorf("max rectangles must be >= 0 (0 disables the limit)")
	}
	switch cfg.Storage.Backend {
	case StorageMemory:
		if cfg.Storage.MaxAtlases <= 0 {
			return fmt.Errorf("storage max atlases must be positive")
		}
	case StorageRedis:
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address must be set for the redis storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}
