package domain

// StrategyConfig selects a strategy variant and its parameters.
type StrategyConfig struct {
	Type   string // StrategyTypeMACrossover | StrategyTypeADXFiltered
	Params StrategyParams
}

// StrategyParams is the union of parameters across strategy variants.
// Unset pointers fall back to per-variant defaults; variants validate the
// fields they require at build time.
type StrategyParams struct {
	FastPeriod    *int     // fast moving-average period
	SlowPeriod    *int     // slow moving-average period
	IndicatorType *string  // "sma" | "ema", default "sma"
	Source        *string  // bar column the averages read, default "close"
	ADXPeriod     *int     // adx_filtered only, default 14
	ADXThreshold  *float64 // adx_filtered only, default 25.0
	WarmupBars    *int     // override the computed warmup
}

// Strategy type constants
const (
	StrategyTypeMACrossover = "ma_crossover"
	StrategyTypeADXFiltered = "adx_filtered"
)
