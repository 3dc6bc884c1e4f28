package strategy

import (
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PredictionThresholdName is the registry name of the prediction strategy.
const PredictionThresholdName = "prediction_threshold"

type predictionThresholdConfig struct {
	Symbol string `yaml:"symbol"`
	// Column names the feature column carrying the externally supplied
	// forecast, keyed per (instrument, timestamp) upstream.
	Column        string  `yaml:"column"`
	BuyThreshold  float64 `yaml:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold"`
	Quantity      float64 `yaml:"quantity"`
	// SmoothWindow averages the last N forecasts before comparing against
	// the thresholds. Values below 2 act on the latest forecast alone.
	SmoothWindow int `yaml:"smooth_window"`
}

// PredictionThreshold trades on an opaque model forecast carried as a feature
// column: buy when the forecast clears the buy threshold, exit when it falls
// below the sell threshold. The engine neither trains nor evaluates the
// model; the forecast is just another column.
type PredictionThreshold struct {
	config predictionThresholdConfig
}

// NewPredictionThreshold creates a prediction strategy with default parameters.
func NewPredictionThreshold() *PredictionThreshold {
	return &PredictionThreshold{
		config: predictionThresholdConfig{
			Symbol:        "SPY",
			Column:        "forecast",
			BuyThreshold:  0.6,
			SellThreshold: 0.4,
			Quantity:      10,
		},
	}
}

// Name implements Strategy.
func (p *PredictionThreshold) Name() string {
	return PredictionThresholdName
}

// Initialize implements Strategy.
func (p *PredictionThreshold) Initialize(config string) error {
	if config == "" {
		return nil
	}

	if err := yaml.Unmarshal([]byte(config), &p.config); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse prediction_threshold config", err)
	}

	if p.config.Column == "" {
		return errors.New(errors.ErrCodeStrategyConfigError, "prediction_threshold requires a forecast column name")
	}

	if p.config.BuyThreshold <= p.config.SellThreshold {
		return errors.New(errors.ErrCodeStrategyConfigError,
			"prediction_threshold requires buy_threshold > sell_threshold")
	}

	if p.config.Quantity <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "prediction_threshold quantity must be positive")
	}

	if p.config.SmoothWindow < 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "prediction_threshold smooth_window must be non-negative")
	}

	return nil
}

// Decide implements Strategy.
func (p *PredictionThreshold) Decide(history *feed.History, portfolio PortfolioView) ([]types.OrderIntent, error) {
	bar, ok := history.Latest(p.config.Symbol)
	if !ok {
		return nil, nil
	}

	forecast, ok := bar.Feature(p.config.Column)
	if !ok {
		// A bar without a forecast is a hold, not an error; forecasts may
		// cover only part of the feed.
		return nil, nil
	}

	if p.config.SmoothWindow > 1 {
		series := history.FeatureSeries(p.config.Symbol, p.config.Column)
		if len(series) < p.config.SmoothWindow {
			return nil, nil
		}

		window := series[len(series)-p.config.SmoothWindow:]
		sum := 0.0
		for _, v := range window {
			sum += v
		}
		forecast = sum / float64(p.config.SmoothWindow)
	}

	position, held := portfolio.Position(p.config.Symbol)

	switch {
	case forecast >= p.config.BuyThreshold && !held:
		return []types.OrderIntent{{
			Symbol:   p.config.Symbol,
			Side:     types.SideBuy,
			Type:     types.OrderTypeMarket,
			Quantity: p.config.Quantity,
			Reason:   types.Reason{Reason: types.OrderReasonStrategy, Message: "forecast above buy threshold"},
		}}, nil
	case forecast <= p.config.SellThreshold && held:
		return []types.OrderIntent{{
			Symbol:   p.config.Symbol,
			Side:     types.SideSell,
			Type:     types.OrderTypeMarket,
			Quantity: position.Quantity,
			Reason:   types.Reason{Reason: types.OrderReasonStrategy, Message: "forecast below sell threshold"},
		}}, nil
	default:
		return nil, nil
	}
}
