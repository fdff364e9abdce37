// Package config loads the process-wide settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. BPMNCHAT_PROCESS.
const Prefix = "BPMNCHAT"

// Session store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Inventory backends.
const (
	InventoryMemory   = "memory"
	InventoryRedis    = "redis"
	InventoryPostgres = "postgres"
	InventoryHTTP     = "http"
)

// Config holds the settings shared by every command.
type Config struct {
	Process     string        `envconfig:"PROCESS"`
	Dialogue    string        `envconfig:"DIALOGUE"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	Pacing      time.Duration `envconfig:"PACING" default:"0s"`
	StrictFlows bool          `envconfig:"STRICT_FLOWS" default:"false"`

	Port    int  `envconfig:"PORT" default:"8080"`
	Metrics bool `envconfig:"METRICS" default:"false"`

	Store      string `envconfig:"STORE" default:"memory"`
	SessionDir string `envconfig:"SESSION_DIR" default:".bpmnchat/sessions"`
	Inventory  string `envconfig:"INVENTORY" default:"memory"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string        `envconfig:"REDIS_PREFIX" default:"bpmnchat:"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	PostgresDSN  string `envconfig:"POSTGRES_DSN"`
	InventoryURL string `envconfig:"INVENTORY_URL"`

	// EncryptionKey is a base64 AES-256 key. When set, stored sessions are sealed.
	EncryptionKey          string   `envconfig:"ENCRYPTION_KEY"`
	EncryptionFallbackKeys []string `envconfig:"ENCRYPTION_FALLBACK_KEYS"`

	// PIIKeys are patterns of context keys masked before a session is stored.
	PIIKeys []string `envconfig:"PII_KEYS"`

	// MaxInputSize bounds user replies in bytes. Zero keeps the sanitizer default.
	MaxInputSize int `envconfig:"MAX_INPUT_SIZE" default:"0"`
}

// Load reads the optional dotenv files (".env" when none is given) and then
// the environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s file: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the backend selection and the settings it depends on.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want memory, file or redis)", c.Store))
	}
	switch c.Inventory {
	case InventoryMemory, InventoryRedis:
	case InventoryPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres inventory requires BPMNCHAT_POSTGRES_DSN"))
		}
	case InventoryHTTP:
		if c.InventoryURL == "" {
			errs = append(errs, errors.New("http inventory requires BPMNCHAT_INVENTORY_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown inventory %q (want memory, redis, postgres or http)", c.Inventory))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.Pacing < 0 {
		errs = append(errs, fmt.Errorf("pacing must not be negative, got %s", c.Pacing))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Store == StoreRedis || c.Inventory == InventoryRedis
}
