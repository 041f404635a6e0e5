package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bar-replay-lab/internal/domain"
	"bar-replay-lab/internal/feature"
)

// Factory errors
var (
	ErrUnknownStrategyType  = errors.New("unknown strategy type")
	ErrMissingFastPeriod    = errors.New("strategy requires fast_period")
	ErrMissingSlowPeriod    = errors.New("strategy requires slow_period")
	ErrInvalidPeriod        = errors.New("strategy periods must be >= 1")
	ErrInvalidIndicatorType = errors.New(`indicator_type must be "sma" or "ema"`)
)

// Builder constructs a strategy together with the feature specs it reads,
// so the caller can hand the specs to the feature pipeline and the column
// names line up by construction.
type Builder func(params domain.StrategyParams) (Strategy, []domain.FeatureSpec, error)

var registry = map[string]Builder{
	domain.StrategyTypeMACrossover: buildMACrossover,
	domain.StrategyTypeADXFiltered: buildADXFiltered,
}

// Register adds a builder under the given type name, replacing any existing
// registration.
func Register(name string, b Builder) {
	registry[name] = b
}

// RegisteredTypes returns the registered strategy type names, sorted.
func RegisteredTypes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromConfig builds a strategy and its feature specs from domain.StrategyConfig.
// Unknown type names are a configuration error naming the registered types.
func FromConfig(cfg domain.StrategyConfig) (Strategy, []domain.FeatureSpec, error) {
	build, ok := registry[cfg.Type]
	if !ok {
		return nil, nil, fmt.Errorf("%w %q (registered: %s)",
			ErrUnknownStrategyType, cfg.Type, strings.Join(RegisteredTypes(), ", "))
	}
	return build(cfg.Params)
}

// buildMACrossover creates MACrossoverStrategy from params.
// Warmup defaults to the slow period.
func buildMACrossover(params domain.StrategyParams) (Strategy, []domain.FeatureSpec, error) {
	fast, slow, indicatorType, source, err := crossoverParams(params)
	if err != nil {
		return nil, nil, err
	}

	fastCol, slowCol, err := maColumns(indicatorType, fast, slow, source)
	if err != nil {
		return nil, nil, err
	}

	specs := []domain.FeatureSpec{
		{Indicator: domain.IndicatorConfig{Type: indicatorType, Period: fast, Source: source}},
		{Indicator: domain.IndicatorConfig{Type: indicatorType, Period: slow, Source: source}},
	}

	warmup := slow
	if params.WarmupBars != nil {
		warmup = *params.WarmupBars
	}

	return NewMACrossoverStrategy(fastCol, slowCol, warmup), specs, nil
}

// buildADXFiltered creates ADXFilteredStrategy from params.
// Warmup defaults to max(slow period, 2×ADX period) so the gate never reads
// a NaN ADX once trading starts.
func buildADXFiltered(params domain.StrategyParams) (Strategy, []domain.FeatureSpec, error) {
	fast, slow, indicatorType, source, err := crossoverParams(params)
	if err != nil {
		return nil, nil, err
	}

	adxPeriod := 14
	if params.ADXPeriod != nil {
		adxPeriod = *params.ADXPeriod
	}
	if adxPeriod < 1 {
		return nil, nil, ErrInvalidPeriod
	}
	adxThreshold := 25.0
	if params.ADXThreshold != nil {
		adxThreshold = *params.ADXThreshold
	}

	fastCol, slowCol, err := maColumns(indicatorType, fast, slow, source)
	if err != nil {
		return nil, nil, err
	}
	adxCol := feature.ADX{Period: adxPeriod}.Name()

	specs := []domain.FeatureSpec{
		{Indicator: domain.IndicatorConfig{Type: indicatorType, Period: fast, Source: source}},
		{Indicator: domain.IndicatorConfig{Type: indicatorType, Period: slow, Source: source}},
		{Indicator: domain.IndicatorConfig{Type: domain.IndicatorADX, Period: adxPeriod}},
	}

	warmup := slow
	if 2*adxPeriod > warmup {
		warmup = 2 * adxPeriod
	}
	if params.WarmupBars != nil {
		warmup = *params.WarmupBars
	}

	return NewADXFilteredStrategy(fastCol, slowCol, adxCol, adxThreshold, warmup), specs, nil
}

// crossoverParams validates the parameters shared by the crossover variants
// and applies their defaults.
func crossoverParams(params domain.StrategyParams) (fast, slow int, indicatorType, source string, err error) {
	if params.FastPeriod == nil {
		return 0, 0, "", "", ErrMissingFastPeriod
	}
	if params.SlowPeriod == nil {
		return 0, 0, "", "", ErrMissingSlowPeriod
	}
	fast, slow = *params.FastPeriod, *params.SlowPeriod
	if fast < 1 || slow < 1 {
		return 0, 0, "", "", ErrInvalidPeriod
	}

	indicatorType = domain.IndicatorSMA
	if params.IndicatorType != nil {
		indicatorType = *params.IndicatorType
	}
	source = "close"
	if params.Source != nil {
		source = *params.Source
	}
	return fast, slow, indicatorType, source, nil
}

// maColumns resolves the feature column names the crossover reads for the
// configured indicator type.
func maColumns(indicatorType string, fast, slow int, source string) (fastCol, slowCol string, err error) {
	switch indicatorType {
	case domain.IndicatorSMA:
		return feature.SMA{Period: fast, Src: source}.Name(), feature.SMA{Period: slow, Src: source}.Name(), nil
	case domain.IndicatorEMA:
		return feature.EMA{Period: fast, Src: source}.Name(), feature.EMA{Period: slow, Src: source}.Name(), nil
	default:
		return "", "", fmt.Errorf("%w, got %q", ErrInvalidIndicatorType, indicatorType)
	}
}
