package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eugenenazirov/atlas-packer/internal/packer"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MAX_RECTANGLES",
		"ZERO_SIZE_POLICY", "POWER_OF_TWO", "STORAGE_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.Packer.MaxRectangles != defaultMaxRectangles {
		t.Fatalf("unexpected max rectangles: %d", cfg.Packer.MaxRectangles)
	}
	if cfg.Packer.ZeroSizePolicy != packer.ZeroSizePlace {
		t.Fatalf("unexpected zero size policy: %s", cfg.Packer.ZeroSizePolicy)
	}
	if !cfg.Packer.PowerOfTwo {
		t.Fatalf("expected power-of-two textures by default")
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Fatalf("unexpected storage backend: %s", cfg.Storage.Backend)
	}
	if !cfg.EnableRequestLogging {
		t.Fatalf("expected request logging enabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_RECTANGLES", "12")
	t.Setenv("ZERO_SIZE_POLICY", "reject")
	t.Setenv("POWER_OF_TWO", "false")
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.Packer.MaxRectangles != 12 {
		t.Fatalf("expected max rectangles 12, got %d", cfg.Packer.MaxRectangles)
	}
	if cfg.Packer.ZeroSizePolicy != packer.ZeroSizeReject {
		t.Fatalf("expected reject policy, got %s", cfg.Packer.ZeroSizePolicy)
	}
	if cfg.Packer.PowerOfTwo {
		t.Fatalf("expected power-of-two disabled")
	}
	if cfg.RateLimitRPS != defaultRateLimitRPS {
		t.Fatalf("malformed RATE_LIMIT_RPS should be ignored, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadRejectsUnknownZeroSizePolicy(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZERO_SIZE_POLICY", "stretch")

	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for unknown zero size policy")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := writeConfigFile(t, `
port: "8181"
write_timeout: 3s
rate_limit:
  rps: 0
packer:
  max_rectangles: 64
  power_of_two: false
storage:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
    ttl: 1h
`)

	cfg, err := Load(&CLIOverrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "8181" {
		t.Fatalf("YAML should win over env, got port %s", cfg.Port)
	}
	if cfg.WriteTimeout != 3*time.Second {
		t.Fatalf("unexpected write timeout: %s", cfg.WriteTimeout)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("explicit zero rps should disable limiting, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != defaultRateLimitBurst {
		t.Fatalf("absent burst should keep the default, got %d", cfg.RateLimitBurst)
	}
	if !cfg.EnableRequestLogging {
		t.Fatalf("absent enable_request_logging should keep the default")
	}
	if cfg.Packer.MaxRectangles != 64 || cfg.Packer.PowerOfTwo {
		t.Fatalf("unexpected packer config: %+v", cfg.Packer)
	}
	if cfg.Storage.Backend != StorageRedis || cfg.Storage.Redis.Addr != "redis:6379" ||
		cfg.Storage.Redis.DB != 2 || cfg.Storage.Redis.TTL != time.Hour {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Storage.Redis.KeyPrefix != defaultRedisKeyPrefix {
		t.Fatalf("absent key prefix should keep the default, got %q", cfg.Storage.Redis.KeyPrefix)
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfigFile(t, "idle_timeout: soon\n")
		if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
			t.Fatalf("expected error for invalid duration")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		path := writeConfigFile(t, "storage:\n  backend: etcd\n")
		if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
			t.Fatalf("expected error for unknown backend")
		}
	})
}

func TestLoadCLIOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "port: \"8181\"\nlog_level: warn\n")

	port := "9999"
	level := "debug"
	rps := 5.0
	limit := 0
	backend := StorageRedis
	addr := "cache:6380"

	cfg, err := Load(&CLIOverrides{
		ConfigFile:     path,
		Port:           &port,
		LogLevel:       &level,
		RateLimitRPS:   &rps,
		MaxRectangles:  &limit,
		StorageBackend: &backend,
		RedisAddr:      &addr,
	})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9999" || cfg.LogLevel != "debug" {
		t.Fatalf("CLI flags should win over YAML, got port %s level %s", cfg.Port, cfg.LogLevel)
	}
	if cfg.RateLimitRPS != 5 {
		t.Fatalf("unexpected rps: %v", cfg.RateLimitRPS)
	}
	if cfg.Packer.MaxRectangles != 0 {
		t.Fatalf("expected unbounded rectangles, got %d", cfg.Packer.MaxRectangles)
	}
	if cfg.Storage.Backend != StorageRedis || cfg.Storage.Redis.Addr != addr {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative rps", func(c *Config) { c.RateLimitRPS = -1 }},
		{"negative burst", func(c *Config) { c.RateLimitBurst = -1 }},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"negative max rectangles", func(c *Config) { c.Packer.MaxRectangles = -1 }},
		{"zero max atlases", func(c *Config) { c.Storage.MaxAtlases = 0 }},
		{"redis without addr", func(c *Config) {
			c.Storage.Backend = StorageRedis
			c.Storage.Redis.Addr = ""
		}},
	}

	if err := validateConfig(defaultConfig()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
