// Package commission provides the configurable commission models applied to
// every fill.
package commission

import (
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Model calculates the commission for a fill, given the executed share count
// and price.
type Model interface {
	// Calculate returns the commission in cash for the given fill.
	Calculate(quantity, price float64) float64
}

// ModelName selects a commission model in the engine configuration.
type ModelName string

const (
	ModelZero ModelName = "zero"
	// ModelPerShare charges a fixed rate per share with a per-order minimum.
	ModelPerShare ModelName = "per_share"
	// ModelPercentNotional charges a fraction of the fill's notional value.
	ModelPercentNotional ModelName = "percent_notional"
)

// AllModels lists the valid model names for schema generation.
var AllModels = []any{
	ModelZero,
	ModelPerShare,
	ModelPercentNotional,
}

// Config selects and parameterizes a commission model.
type Config struct {
	Model ModelName `yaml:"model" json:"model"`
	// Rate is dollars per share for per_share, a fraction of notional for
	// percent_notional. Ignored by zero.
	Rate float64 `yaml:"rate" json:"rate"`
	// Minimum is the per-order commission floor for per_share.
	Minimum float64 `yaml:"minimum" json:"minimum"`
}

// FromConfig constructs the configured model. Invalid parameters are a
// configuration error, fatal at startup.
func FromConfig(cfg Config) (Model, error) {
	switch cfg.Model {
	case ModelZero, "":
		return NewZero(), nil
	case ModelPerShare:
		if cfg.Rate < 0 || cfg.Minimum < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidCommissionParam,
				"per_share commission requires non-negative rate and minimum, got rate=%f minimum=%f",
				cfg.Rate, cfg.Minimum)
		}

		return NewPerShare(cfg.Rate, cfg.Minimum), nil
	case ModelPercentNotional:
		if cfg.Rate < 0 || cfg.Rate >= 1 {
			return nil, errors.Newf(errors.ErrCodeInvalidCommissionParam,
				"percent_notional commission requires rate in [0, 1), got %f", cfg.Rate)
		}

		return NewPercentNotional(cfg.Rate), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownCommissionModel, "unknown commission model: %s", cfg.Model)
	}
}
