package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "INVENTORY_"

	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"
)

type Config struct {
	Server struct {
		Port    int `koanf:"port" validate:"min=1,max=65535"`
		Timeout struct {
			ReadHeader time.Duration `koanf:"readheader" validate:"gt=0"`
			Shutdown   time.Duration `koanf:"shutdown" validate:"gt=0"`
		} `koanf:"timeout"`
	} `koanf:"server"`

	Log struct {
		Level string `koanf:"level" validate:"oneof=debug info warn error"`
	} `koanf:"log"`

	Storage struct {
		Driver string `koanf:"driver" validate:"oneof=file memory postgres redis"`
		Path   string `koanf:"path" validate:"required_if=Driver file"`
		DSN    string `koanf:"dsn" validate:"required_if=Driver postgres"`
		Redis  struct {
			Addr string `koanf:"addr"`
			Key  string `koanf:"key"`
		} `koanf:"redis"`
	} `koanf:"storage"`

	Metrics struct {
		Enabled bool   `koanf:"enabled"`
		Token   string `koanf:"token"`
	} `koanf:"metrics"`

	RateLimit struct {
		RPS   float64 `koanf:"rps" validate:"gte=0"`
		Burst int     `koanf:"burst" validate:"gte=0"`
	} `koanf:"ratelimit"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":               3000,
		"server.timeout.readheader": 5 * time.Second,
		"server.timeout.shutdown":   10 * time.Second,
		"log.level":                 "info",
		"storage.driver":            DriverFile,
		"storage.path":              "data/products.json",
		"storage.redis.key":         "inventory:products",
		"metrics.enabled":           false,
		"ratelimit.rps":             0,
		"ratelimit.burst":           10,
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c Config) String() string {
	return fmt.Sprintf("server.port=%d, server.timeout.readheader=%v, server.timeout.shutdown=%v, log.level=%s, storage.driver=%s, storage.path=%s, storage.dsn=%s, storage.redis.addr=%s, metrics.enabled=%t, ratelimit.rps=%v",
		c.Server.Port,
		c.Server.Timeout.ReadHeader,
		c.Server.Timeout.Shutdown,
		c.Log.Level,
		c.Storage.Driver,
		c.Storage.Path,
		maskURL(c.Storage.DSN),
		c.Storage.Redis.Addr,
		c.Metrics.Enabled,
		c.RateLimit.RPS)
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	if _, host, ok := strings.Cut(url, "@"); ok {
		return "****@" + host
	}
	return "****"
}

// Load layers, lowest priority first: built-in defaults, the YAML file, the
// .env file, $PORT, then INVENTORY_* variables (INVENTORY_STORAGE_PATH sets
// storage.path). Missing files are skipped.
func Load(configFile, envFile string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", configFile, err)
		}
	}

	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if strings.HasPrefix(key, envPrefix) {
				envMap[keyTransformer(key)] = value
			}
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}

	if port := os.Getenv("PORT"); port != "" {
		if err := k.Set("server.port", port); err != nil {
			return Config{}, fmt.Errorf("apply PORT: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", keyTransformer), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Driver == DriverPostgres && !isValidPostgresURL(c.Storage.DSN) {
		return fmt.Errorf("storage.dsn must start with 'postgres://': %s", maskURL(c.Storage.DSN))
	}
	if c.Storage.Driver == DriverRedis && c.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr is required for the redis driver")
	}
	if c.Metrics.Enabled && c.Metrics.Token == "" {
		return errors.New("metrics.token is required when metrics are enabled")
	}
	return nil
}

func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

func keyTransformer(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "_", ".")
}
