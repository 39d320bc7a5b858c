// Package config loads mutation layer configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full mutation layer configuration.
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	CoSigner CoSignerConfig `yaml:"cosigner"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// LedgerConfig configures the ledger RPC client and broadcast executor.
type LedgerConfig struct {
	RPCURL             string        `yaml:"rpc_url"`
	NetworkID          uint32        `yaml:"network_id"`
	Timeout            time.Duration `yaml:"timeout"`
	ConfirmationWait   time.Duration `yaml:"confirmation_wait"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	BroadcastPerSecond int           `yaml:"broadcast_per_second"`
	BroadcastBurst     int           `yaml:"broadcast_burst"`
}

// CoSignerConfig configures the remote co-signing service.
type CoSignerConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AppID       string        `yaml:"app_id"`
	AppSecret   string        `yaml:"app_secret"`
	CallbackURL string        `yaml:"callback_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// BridgeConfig configures the extension signer bridge.
type BridgeConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the read cache store.
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // memory or redis
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Timeout:            30 * time.Second,
			ConfirmationWait:   2 * time.Minute,
			PollInterval:       2 * time.Second,
			BroadcastPerSecond: 5,
			BroadcastBurst:     10,
		},
		CoSigner: CoSignerConfig{
			Timeout: 30 * time.Second,
		},
		Bridge: BridgeConfig{
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			DefaultTTL: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the given YAML path, then applies environment
// overrides. A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	// Allow a local .env for development runs.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.Ledger.RPCURL == "" {
		return fmt.Errorf("ledger.rpc_url is required")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Ledger.BroadcastPerSecond <= 0 {
		return fmt.Errorf("ledger.broadcast_per_second must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEDGER_RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := os.Getenv("LEDGER_NETWORK_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Ledger.NetworkID = uint32(id)
		}
	}
	if v := os.Getenv("COSIGNER_BASE_URL"); v != "" {
		cfg.CoSigner.BaseURL = v
	}
	if v := os.Getenv("COSIGNER_APP_ID"); v != "" {
		cfg.CoSigner.AppID = v
	}
	if v := os.Getenv("COSIGNER_APP_SECRET"); v != "" {
		cfg.CoSigner.AppSecret = v
	}
	if v := os.Getenv("COSIGNER_CALLBACK_URL"); v != "" {
		cfg.CoSigner.CallbackURL = v
	}
	if v := os.Getenv("SIGNER_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("CACHE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
