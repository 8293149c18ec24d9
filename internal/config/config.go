// Package config loads the marketlab YAML configuration and applies
// environment variable overrides. The loaded Config is immutable by
// convention: it is built once in main and passed into constructors.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for marketlab.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Logging    Logging    `yaml:"logging"`
	Market     Market     `yaml:"market"`
	Fetch      Fetch      `yaml:"fetch"`
	Backtest   Backtest   `yaml:"backtest"`
	Strategies Strategies `yaml:"strategies"`
	Run        Run        `yaml:"run"`
	Scheduler  Scheduler  `yaml:"scheduler"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds the dashboard API listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the market-data provider.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Market defines the tracked symbol universe and calendar.
type Market struct {
	Calendar string   `yaml:"calendar"` // "US"
	Symbols  []string `yaml:"symbols"`
	// HistoryDays is how much history each daily run loads for strategy
	// evaluation and backtesting.
	HistoryDays int `yaml:"history_days"`
}

// Fetch controls the external data-fetch collaborator.
type Fetch struct {
	MaxAttempts     int `yaml:"max_attempts"`
	BaseDelayMS     int `yaml:"base_delay_ms"`
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// BaseDelay returns the initial retry backoff as a duration.
func (f Fetch) BaseDelay() time.Duration {
	return time.Duration(f.BaseDelayMS) * time.Millisecond
}

// Backtest defines simulation parameters.
type Backtest struct {
	InitialBalance float64 `yaml:"initial_balance"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
	AllowShort     bool    `yaml:"allow_short"`
}

// Strategies carries the typed parameter blocks for each strategy variant.
type Strategies struct {
	MACross     MACrossParams     `yaml:"ma_cross"`
	RSI         RSIParams         `yaml:"rsi"`
	MACD        MACDParams        `yaml:"macd"`
	VolumePrice VolumePriceParams `yaml:"volume_price"`
	Trend       TrendParams       `yaml:"trend"`
}

// MACrossParams parameterizes the moving-average crossover strategy.
type MACrossParams struct {
	ShortPeriod int `yaml:"short_period"`
	LongPeriod  int `yaml:"long_period"`
}

// RSIParams parameterizes the RSI strategy.
type RSIParams struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

// MACDParams parameterizes the MACD strategy.
type MACDParams struct {
	FastPeriod   int `yaml:"fast_period"`
	SlowPeriod   int `yaml:"slow_period"`
	SignalPeriod int `yaml:"signal_period"`
}

// VolumePriceParams parameterizes the volume-price strategy.
type VolumePriceParams struct {
	PriceThreshold  float64 `yaml:"price_threshold"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
	LookbackDays    int     `yaml:"lookback_days"`
}

// TrendParams parameterizes the trend-following strategy.
type TrendParams struct {
	ATRPeriod         int     `yaml:"atr_period"`
	TrendPeriod       int     `yaml:"trend_period"`
	BreakoutThreshold float64 `yaml:"breakout_threshold"`
	MinTrendStrength  float64 `yaml:"min_trend_strength"`
}

// Run controls batch execution.
type Run struct {
	MaxWorkers    int     `yaml:"max_workers"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Scheduler configures the unattended daily run.
type Scheduler struct {
	// CronSpec uses robfig/cron six-field syntax (with seconds).
	CronSpec string `yaml:"cron_spec"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path, fills defaults, and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with working defaults for everything
// except credentials and the symbol universe.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/marketlab.db",
		},
		Server:  Server{Host: "127.0.0.1", Port: 8090},
		Logging: Logging{Level: "info"},
		Market:  Market{Calendar: "US", HistoryDays: 3 * 365},
		Fetch: Fetch{
			MaxAttempts:     4,
			BaseDelayMS:     500,
			RateLimitPerMin: 180,
		},
		Backtest: Backtest{
			InitialBalance: 100_000,
			RiskPerTrade:   0.02,
			StopLossPct:    0.03,
			TakeProfitPct:  0.09,
		},
		Strategies: Strategies{
			MACross:     MACrossParams{ShortPeriod: 50, LongPeriod: 200},
			RSI:         RSIParams{Period: 14, Oversold: 30, Overbought: 70},
			MACD:        MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
			VolumePrice: VolumePriceParams{PriceThreshold: 0.02, VolumeThreshold: 2.0, LookbackDays: 20},
			Trend:       TrendParams{ATRPeriod: 14, TrendPeriod: 20, BreakoutThreshold: 1.5, MinTrendStrength: 0.6},
		},
		Run:       Run{MaxWorkers: 4, MinConfidence: 0.6},
		Scheduler: Scheduler{CronSpec: "0 30 17 * * 1-5"}, // 17:30 Mon-Fri
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c *Config) Validate() error {
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path must be set")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	if c.Strategies.MACross.ShortPeriod >= c.Strategies.MACross.LongPeriod {
		return fmt.Errorf("ma_cross: short_period %d must be below long_period %d",
			c.Strategies.MACross.ShortPeriod, c.Strategies.MACross.LongPeriod)
	}
	if c.Strategies.RSI.Oversold >= c.Strategies.RSI.Overbought {
		return fmt.Errorf("rsi: oversold %g must be below overbought %g",
			c.Strategies.RSI.Oversold, c.Strategies.RSI.Overbought)
	}
	if c.Strategies.MACD.FastPeriod >= c.Strategies.MACD.SlowPeriod {
		return fmt.Errorf("macd: fast_period %d must be below slow_period %d",
			c.Strategies.MACD.FastPeriod, c.Strategies.MACD.SlowPeriod)
	}
	if c.Backtest.RiskPerTrade <= 0 || c.Backtest.RiskPerTrade >= 1 {
		return fmt.Errorf("backtest: risk_per_trade %g out of (0,1)", c.Backtest.RiskPerTrade)
	}
	if c.Backtest.StopLossPct <= 0 || c.Backtest.TakeProfitPct <= 0 {
		return fmt.Errorf("backtest: stop_loss_pct and take_profit_pct must be positive")
	}
	if c.Run.MaxWorkers < 1 {
		return fmt.Errorf("run: max_workers must be at least 1")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
