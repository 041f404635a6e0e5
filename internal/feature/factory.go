package feature

import (
	"errors"
	"fmt"

	"bar-replay-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownIndicatorType = errors.New("unknown indicator type")
	ErrUnknownTransformType = errors.New("unknown transform type")
)

// FromConfigs builds a Pipeline from declarative feature specs. Unknown
// types and invalid parameters are configuration errors raised here, before
// any computation starts.
func FromConfigs(specs []domain.FeatureSpec) (*Pipeline, error) {
	built := make([]Spec, 0, len(specs))
	for i, cfg := range specs {
		base, err := buildIndicator(cfg.Indicator)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		transforms := make([]Transform, 0, len(cfg.Transforms))
		for j, tc := range cfg.Transforms {
			t, err := buildTransform(tc)
			if err != nil {
				return nil, fmt.Errorf("feature %d transform %d: %w", i, j, err)
			}
			transforms = append(transforms, t)
		}

		built = append(built, Spec{Base: base, Transforms: transforms, Alias: cfg.Alias})
	}
	return NewPipeline(built)
}

// buildIndicator maps one IndicatorConfig to a concrete indicator.
func buildIndicator(cfg domain.IndicatorConfig) (Indicator, error) {
	if cfg.Period < 1 {
		return nil, fmt.Errorf("indicator %q: period must be >= 1, got %d", cfg.Type, cfg.Period)
	}

	src := cfg.Source
	if src == "" {
		src = "close"
	}

	switch cfg.Type {
	case domain.IndicatorSMA:
		return SMA{Period: cfg.Period, Src: src}, nil
	case domain.IndicatorEMA:
		return EMA{Period: cfg.Period, Src: src}, nil
	case domain.IndicatorADX:
		return ADX{Period: cfg.Period}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: sma, ema, adx)", ErrUnknownIndicatorType, cfg.Type)
	}
}

// buildTransform maps one TransformConfig to a concrete transform.
func buildTransform(cfg domain.TransformConfig) (Transform, error) {
	switch cfg.Type {
	case domain.TransformDiff:
		if cfg.K < 1 {
			return nil, fmt.Errorf("diff: k must be >= 1, got %d", cfg.K)
		}
		return Diff{K: cfg.K}, nil
	case domain.TransformLag:
		if cfg.K < 1 {
			return nil, fmt.Errorf("lag: k must be >= 1, got %d", cfg.K)
		}
		return Lag{K: cfg.K}, nil
	case domain.TransformRescale:
		return Rescale{
			OldMin: cfg.OldMin,
			OldMax: cfg.OldMax,
			NewMin: cfg.NewMin,
			NewMax: cfg.NewMax,
		}, nil
	case domain.TransformZScore:
		if cfg.Window < 2 {
			return nil, fmt.Errorf("zscore: window must be >= 2, got %d", cfg.Window)
		}
		return ZScoreRolling{Window: cfg.Window}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: diff, lag, rescale, zscore)", ErrUnknownTransformType, cfg.Type)
	}
}
