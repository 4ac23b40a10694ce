package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Binance.ReconnectDelay != 5*time.Second {
		t.Fatalf("reconnect delay default = %v", c.Binance.ReconnectDelay)
	}
	if c.Binance.BaseSymbol != "BTCUSDT" || c.Binance.ComparisonSymbol != "ETHUSDT" {
		t.Fatalf("symbol defaults wrong: %s %s", c.Binance.BaseSymbol, c.Binance.ComparisonSymbol)
	}
	if c.Backend.Type != "clickhouse" {
		t.Fatalf("backend default = %s", c.Backend.Type)
	}
	if c.Activity.MaxEntries != 10 {
		t.Fatalf("activity max_entries default = %d", c.Activity.MaxEntries)
	}
}

func TestValidateRejectsSameSymbols(t *testing.T) {
	path := writeConfig(t, `
environment: test
binance:
  base_symbol: BTCUSDT
  comparison_symbol: BTCUSDT
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for identical symbols")
	}
}

func TestValidateKafkaBackendNeedsBrokers(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: kafka
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for kafka backend without brokers")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("BASE_SYMBOL", "SOLUSDT")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Binance.BaseSymbol != "SOLUSDT" {
		t.Fatalf("env override not applied: %s", c.Binance.BaseSymbol)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("log level override not applied: %s", c.Logging.Level)
	}
}
