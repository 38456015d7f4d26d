package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 8080
model:
  dir: models
nse:
  base_url: http://localhost:9999/chain
collector:
  symbol: BANKNIFTY
  interval: 30s
store:
  backend: parquet
  parquet_dir: /tmp/op-test
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Collector.Symbol != "BANKNIFTY" {
		t.Errorf("symbol = %q, want BANKNIFTY", cfg.Collector.Symbol)
	}
	if cfg.Collector.Interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s", cfg.Collector.Interval)
	}
	// defaults applied for fields the file omits
	if cfg.NSE.Timeout != 10*time.Second {
		t.Errorf("nse timeout default = %v, want 10s", cfg.NSE.Timeout)
	}
	if cfg.Collector.BufferSize != 100 {
		t.Errorf("buffer size default = %d, want 100", cfg.Collector.BufferSize)
	}
}

func TestLoadMissingEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, "model:\n  dir: models\n"))
	if err == nil {
		t.Fatal("expected error for missing environment")
	}
}

func TestLoadBadBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
model:
  dir: models
store:
  backend: cassandra
`))
	if err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("SYMBOL", "finnifty")
	t.Setenv("STORE_BACKEND", "none")
	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv failed: %v", err)
	}
	if cfg.Collector.Symbol != "FINNIFTY" {
		t.Errorf("symbol = %q, want FINNIFTY", cfg.Collector.Symbol)
	}
	if cfg.Store.Backend != "none" {
		t.Errorf("backend = %q, want none", cfg.Store.Backend)
	}
}
