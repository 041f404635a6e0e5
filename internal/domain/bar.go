package domain

import "time"

// Bar represents one OHLCV sample at a fixed interval.
// Immutable once the snapshot passes validation.
type Bar struct {
	Timestamp time.Time // bar open time, UTC
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Spread    float64 // broker spread in points, 0 when the source has none
	HasSpread bool    // whether the source carried a spread column
}

// Supported timeframe labels. The label is descriptive only; bar spacing is
// whatever the snapshot contains.
const (
	TimeframeM1  = "M1"
	TimeframeM5  = "M5"
	TimeframeM15 = "M15"
	TimeframeM30 = "M30"
	TimeframeH1  = "H1"
	TimeframeH4  = "H4"
	TimeframeD1  = "D1"
)
