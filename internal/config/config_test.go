package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Ledger.Timeout != 30*time.Second {
		t.Errorf("unexpected ledger timeout %v", cfg.Ledger.Timeout)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected memory cache backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Ledger.BroadcastPerSecond != 5 {
		t.Errorf("unexpected broadcast rate %d", cfg.Ledger.BroadcastPerSecond)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ledger:
  rpc_url: https://rpc.example
  network_id: 7
  broadcast_per_second: 20
cosigner:
  base_url: https://cosign.example
  app_id: verse-web
cache:
  backend: memory
  default_ttl: 1m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ledger.RPCURL != "https://rpc.example" {
		t.Errorf("unexpected rpc url %q", cfg.Ledger.RPCURL)
	}
	if cfg.Ledger.NetworkID != 7 {
		t.Errorf("unexpected network id %d", cfg.Ledger.NetworkID)
	}
	if cfg.Ledger.BroadcastPerSecond != 20 {
		t.Errorf("unexpected broadcast rate %d", cfg.Ledger.BroadcastPerSecond)
	}
	if cfg.Cache.DefaultTTL != time.Minute {
		t.Errorf("unexpected cache ttl %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected log level %q", cfg.Log.Level)
	}
	// Fields the file omits keep their defaults.
	if cfg.Ledger.ConfirmationWait != 2*time.Minute {
		t.Errorf("confirmation wait default lost: %v", cfg.Ledger.ConfirmationWait)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ledger:\n  rpc_url: https://file.example\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LEDGER_RPC_URL", "https://env.example")
	t.Setenv("LEDGER_NETWORK_ID", "3")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ledger.RPCURL != "https://env.example" {
		t.Errorf("environment should override the file, got %q", cfg.Ledger.RPCURL)
	}
	if cfg.Ledger.NetworkID != 3 {
		t.Errorf("unexpected network id %d", cfg.Ledger.NetworkID)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("unexpected log level %q", cfg.Log.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LEDGER_RPC_URL", "https://env.example")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Ledger.RPCURL != "https://env.example" {
		t.Errorf("unexpected rpc url %q", cfg.Ledger.RPCURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("missing rpc url should fail validation")
	}

	cfg.Ledger.RPCURL = "https://rpc.example"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis backend without address should fail validation")
	}
	cfg.Cache.RedisAddr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis config rejected: %v", err)
	}

	cfg.Cache.Backend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail validation")
	}
}
