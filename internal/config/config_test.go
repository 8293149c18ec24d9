package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketlab.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
market:
  symbols: [AAPL, MSFT]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backtest.InitialBalance != 100_000 {
		t.Errorf("InitialBalance = %g, want 100000", cfg.Backtest.InitialBalance)
	}
	if cfg.Strategies.MACross.ShortPeriod != 50 || cfg.Strategies.MACross.LongPeriod != 200 {
		t.Errorf("MACross defaults = %d/%d, want 50/200",
			cfg.Strategies.MACross.ShortPeriod, cfg.Strategies.MACross.LongPeriod)
	}
	if len(cfg.Market.Symbols) != 2 {
		t.Errorf("Symbols = %v, want [AAPL MSFT]", cfg.Market.Symbols)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /var/lib/marketlab
  sqlite_path: /var/lib/marketlab/db.sqlite
backtest:
  initial_balance: 50000
  risk_per_trade: 0.01
  stop_loss_pct: 0.05
  take_profit_pct: 0.10
strategies:
  rsi:
    period: 21
    oversold: 25
    overbought: 75
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/var/lib/marketlab" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Backtest.InitialBalance != 50000 || cfg.Backtest.RiskPerTrade != 0.01 {
		t.Errorf("backtest overrides not applied: %+v", cfg.Backtest)
	}
	if cfg.Strategies.RSI.Period != 21 {
		t.Errorf("RSI.Period = %d, want 21", cfg.Strategies.RSI.Period)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "env-secret")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `
alpaca:
  api_key: file-key
  api_secret: file-secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" || cfg.Alpaca.APISecret != "env-secret" {
		t.Errorf("env did not override alpaca creds: %+v", cfg.Alpaca)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"short >= long", "strategies:\n  ma_cross:\n    short_period: 200\n    long_period: 50\n"},
		{"oversold >= overbought", "strategies:\n  rsi:\n    oversold: 80\n    overbought: 20\n"},
		{"risk out of range", "backtest:\n  risk_per_trade: 1.5\n"},
		{"zero workers", "run:\n  max_workers: 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Load accepted invalid config: %s", tc.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of missing file should fail")
	}
}
