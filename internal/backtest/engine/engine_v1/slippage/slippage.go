// Package slippage provides the configurable slippage models applied to
// market-order fill prices.
package slippage

import (
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Model adjusts a raw fill price for slippage. Buys are adjusted upward,
// sells downward.
type Model interface {
	// Adjust returns the executed price for a fill of the given size against
	// a bar with the given volume.
	Adjust(price float64, side types.Side, quantity, barVolume float64) float64
}

// ModelName selects a slippage model in the engine configuration.
type ModelName string

const (
	ModelZero ModelName = "zero"
	// ModelBasisPoints applies a fixed basis-point cost regardless of size.
	ModelBasisPoints ModelName = "basis_points"
	// ModelVolumeImpact scales the basis-point cost by the order's share of
	// the bar's volume.
	ModelVolumeImpact ModelName = "volume_impact"
)

// AllModels lists the valid model names for schema generation.
var AllModels = []any{
	ModelZero,
	ModelBasisPoints,
	ModelVolumeImpact,
}

// Config selects and parameterizes a slippage model.
type Config struct {
	Model ModelName `yaml:"model" json:"model"`
	// Bps is the slippage cost in basis points. For volume_impact it is the
	// cost paid when an order consumes the bar's entire volume.
	Bps float64 `yaml:"bps" json:"bps"`
}

// FromConfig constructs the configured model. Invalid parameters are a
// configuration error, fatal at startup.
func FromConfig(cfg Config) (Model, error) {
	switch cfg.Model {
	case ModelZero, "":
		return NewZero(), nil
	case ModelBasisPoints:
		if cfg.Bps < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidSlippageParam,
				"basis_points slippage requires non-negative bps, got %f", cfg.Bps)
		}

		return NewBasisPoints(cfg.Bps), nil
	case ModelVolumeImpact:
		if cfg.Bps < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidSlippageParam,
				"volume_impact slippage requires non-negative bps, got %f", cfg.Bps)
		}

		return NewVolumeImpact(cfg.Bps), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownSlippageModel, "unknown slippage model: %s", cfg.Model)
	}
}

// Zero applies no slippage.
type Zero struct{}

// NewZero creates a zero slippage model.
func NewZero() Model {
	return &Zero{}
}

// Adjust implements Model.
func (s *Zero) Adjust(price float64, side types.Side, quantity, barVolume float64) float64 {
	return price
}

// BasisPoints applies a fixed basis-point cost, the default model.
type BasisPoints struct {
	bps float64
}

// NewBasisPoints creates a fixed basis-point slippage model.
func NewBasisPoints(bps float64) Model {
	return &BasisPoints{bps: bps}
}

// Adjust implements Model.
func (s *BasisPoints) Adjust(price float64, side types.Side, quantity, barVolume float64) float64 {
	return apply(price, side, s.bps/10000)
}

// VolumeImpact scales the basis-point cost linearly with the order's share
// of the bar's volume, so large orders against thin bars pay more.
type VolumeImpact struct {
	bps float64
}

// NewVolumeImpact creates a volume-scaled slippage model.
func NewVolumeImpact(bps float64) Model {
	return &VolumeImpact{bps: bps}
}

// Adjust implements Model.
func (s *VolumeImpact) Adjust(price float64, side types.Side, quantity, barVolume float64) float64 {
	ratio := 1.0
	if barVolume > 0 {
		ratio = quantity / barVolume
		if ratio > 1 {
			ratio = 1
		}
	}

	return apply(price, side, s.bps/10000*ratio)
}

func apply(price float64, side types.Side, fraction float64) float64 {
	if side == types.SideBuy {
		return price * (1 + fraction)
	}

	return price * (1 - fraction)
}
