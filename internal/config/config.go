// Package config loads and validates run configuration from YAML files,
// with optional .env preload and BARLAB_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bar-replay-lab/internal/domain"
)

// Snapshot formats accepted by data.format.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Config is the full configuration for one backtest run.
type Config struct {
	Symbol          string         `yaml:"symbol"`
	Timeframe       string         `yaml:"timeframe"`
	StartingCapital float64        `yaml:"starting_capital"`
	PositionSize    float64        `yaml:"position_size"`
	Strategy        StrategyConfig `yaml:"strategy"`
	Risk            RiskConfig     `yaml:"risk"`
	Data            DataConfig     `yaml:"data"`
	OutputDir       string         `yaml:"output_dir"`
}

// StrategyConfig selects a strategy variant and its parameters.
type StrategyConfig struct {
	Type   string         `yaml:"type"`
	Params StrategyParams `yaml:"params"`
}

// StrategyParams mirrors domain.StrategyParams in YAML form. Absent keys
// stay nil so variant defaults apply downstream.
type StrategyParams struct {
	FastPeriod    *int     `yaml:"fast_period"`
	SlowPeriod    *int     `yaml:"slow_period"`
	IndicatorType *string  `yaml:"indicator_type"`
	Source        *string  `yaml:"source"`
	ADXPeriod     *int     `yaml:"adx_period"`
	ADXThreshold  *float64 `yaml:"adx_threshold"`
	WarmupBars    *int     `yaml:"warmup_bars"`
}

// RiskConfig holds optional drawdown limits in percent. A missing key
// disables that check.
type RiskConfig struct {
	MaxDrawdownPct    *float64 `yaml:"max_drawdown_pct"`
	DailyDDLimitPct   *float64 `yaml:"daily_dd_limit_pct"`
	MonthlyDDLimitPct *float64 `yaml:"monthly_dd_limit_pct"`
}

// DataConfig locates the bar snapshot for the run.
type DataConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"`
	Format      string `yaml:"format"`
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	// Optional .env next to the working directory; ignore if absent.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with the documented defaults filled in.
func defaultConfig() *Config {
	return &Config{
		StartingCapital: 100_000,
		PositionSize:    1.0,
		Strategy: StrategyConfig{
			Type: domain.StrategyTypeMACrossover,
		},
		Data: DataConfig{
			Format: FormatCSV,
		},
		OutputDir: "runs",
	}
}

// applyEnvOverrides lets BARLAB_* variables override file values, applied
// after the file parse so environments can retarget a shared config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BARLAB_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("BARLAB_TIMEFRAME"); v != "" {
		cfg.Timeframe = v
	}
	if v := os.Getenv("BARLAB_SNAPSHOT_DIR"); v != "" {
		cfg.Data.SnapshotDir = v
	}
	if v := os.Getenv("BARLAB_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("BARLAB_STARTING_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BARLAB_STARTING_CAPITAL: %w", err)
		}
		cfg.StartingCapital = f
	}
	if v := os.Getenv("BARLAB_POSITION_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BARLAB_POSITION_SIZE: %w", err)
		}
		cfg.PositionSize = f
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.Timeframe == "" {
		errs = append(errs, errors.New("timeframe is required"))
	}
	if c.StartingCapital <= 0 {
		errs = append(errs, fmt.Errorf("starting_capital must be > 0, got %v", c.StartingCapital))
	}
	if c.PositionSize <= 0 {
		errs = append(errs, fmt.Errorf("position_size must be > 0, got %v", c.PositionSize))
	}
	if c.Strategy.Type == "" {
		errs = append(errs, errors.New("strategy.type is required"))
	}
	if c.Data.SnapshotDir == "" {
		errs = append(errs, errors.New("data.snapshot_dir is required"))
	}
	if c.Data.Format != FormatCSV && c.Data.Format != FormatParquet {
		errs = append(errs, fmt.Errorf("data.format must be %q or %q, got %q", FormatCSV, FormatParquet, c.Data.Format))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	for name, pct := range map[string]*float64{
		"risk.max_drawdown_pct":     c.Risk.MaxDrawdownPct,
		"risk.daily_dd_limit_pct":   c.Risk.DailyDDLimitPct,
		"risk.monthly_dd_limit_pct": c.Risk.MonthlyDDLimitPct,
	} {
		if pct != nil && *pct <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0 when set, got %v", name, *pct))
		}
	}

	return errors.Join(errs...)
}

// DomainStrategy converts the YAML strategy section to its domain form.
func (c *Config) DomainStrategy() domain.StrategyConfig {
	return domain.StrategyConfig{
		Type: c.Strategy.Type,
		Params: domain.StrategyParams{
			FastPeriod:    c.Strategy.Params.FastPeriod,
			SlowPeriod:    c.Strategy.Params.SlowPeriod,
			IndicatorType: c.Strategy.Params.IndicatorType,
			Source:        c.Strategy.Params.Source,
			ADXPeriod:     c.Strategy.Params.ADXPeriod,
			ADXThreshold:  c.Strategy.Params.ADXThreshold,
			WarmupBars:    c.Strategy.Params.WarmupBars,
		},
	}
}

// DomainRisk converts the YAML risk section to its domain form.
func (c *Config) DomainRisk() domain.RiskConfig {
	return domain.RiskConfig{
		MaxDrawdownPct:    c.Risk.MaxDrawdownPct,
		DailyDDLimitPct:   c.Risk.DailyDDLimitPct,
		MonthlyDDLimitPct: c.Risk.MonthlyDDLimitPct,
	}
}

// Marshal renders the config back to YAML, used when archiving the exact
// configuration alongside run artifacts.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
