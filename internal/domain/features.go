package domain

// IndicatorConfig selects a base indicator computed over the bar sequence.
type IndicatorConfig struct {
	Type   string // IndicatorSMA | IndicatorEMA | IndicatorADX
	Period int
	Source string // bar column for sma/ema: "open", "high", "low", "close", "volume"
}

// TransformConfig is one step applied to an indicator column. Transforms
// chain in configuration order, each consuming the previous step's output.
type TransformConfig struct {
	Type   string  // TransformDiff | TransformLag | TransformRescale | TransformZScore
	K      int     // diff/lag distance
	Window int     // z-score rolling window
	OldMin float64 // rescale input range
	OldMax float64
	NewMin float64 // rescale output range
	NewMax float64
}

// FeatureSpec names one feature column: a base indicator plus an ordered
// transform chain. The column key is Alias when set, otherwise the indicator
// name with each transform's suffix appended.
type FeatureSpec struct {
	Indicator  IndicatorConfig
	Transforms []TransformConfig
	Alias      string
}

// Indicator type constants
const (
	IndicatorSMA = "sma"
	IndicatorEMA = "ema"
	IndicatorADX = "adx"
)

// Transform type constants
const (
	TransformDiff    = "diff"
	TransformLag     = "lag"
	TransformRescale = "rescale"
	TransformZScore  = "zscore"
)
