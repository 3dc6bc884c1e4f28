package strategy

import (
	"fmt"

	"github.com/thrasher-corp/gct-ta/indicators"
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SMACrossoverName is the registry name of the SMA crossover strategy.
const SMACrossoverName = "sma_crossover"

type smaCrossoverConfig struct {
	Symbol      string  `yaml:"symbol"`
	ShortPeriod int     `yaml:"short_period"`
	LongPeriod  int     `yaml:"long_period"`
	Quantity    float64 `yaml:"quantity"`
}

// SMACrossover is a rule-based strategy: buy when the short moving average
// crosses above the long one, sell the whole position when it crosses below.
type SMACrossover struct {
	config smaCrossoverConfig
}

// NewSMACrossover creates an SMA crossover strategy with default parameters.
func NewSMACrossover() *SMACrossover {
	return &SMACrossover{
		config: smaCrossoverConfig{
			Symbol:      "SPY",
			ShortPeriod: 5,
			LongPeriod:  20,
			Quantity:    10,
		},
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("%s_%d_%d", SMACrossoverName, s.config.ShortPeriod, s.config.LongPeriod)
}

// Initialize implements Strategy.
func (s *SMACrossover) Initialize(config string) error {
	if config == "" {
		return nil
	}

	if err := yaml.Unmarshal([]byte(config), &s.config); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse sma_crossover config", err)
	}

	if s.config.ShortPeriod <= 0 || s.config.LongPeriod <= s.config.ShortPeriod {
		return errors.Newf(errors.ErrCodeStrategyConfigError,
			"sma_crossover requires 0 < short_period < long_period, got %d/%d",
			s.config.ShortPeriod, s.config.LongPeriod)
	}

	if s.config.Quantity <= 0 {
		return errors.New(errors.ErrCodeStrategyConfigError, "sma_crossover quantity must be positive")
	}

	return nil
}

// Decide implements Strategy.
func (s *SMACrossover) Decide(history *feed.History, portfolio PortfolioView) ([]types.OrderIntent, error) {
	closes := history.Closes(s.config.Symbol)

	// Need one bar beyond the long period to observe a crossing.
	if len(closes) <= s.config.LongPeriod {
		return nil, nil
	}

	shortMA := indicators.SMA(closes, s.config.ShortPeriod)
	longMA := indicators.SMA(closes, s.config.LongPeriod)

	if len(shortMA) < 2 || len(longMA) < 2 {
		return nil, nil
	}

	// Compare the windows ending on the current and previous bars.
	curShort, prevShort := shortMA[len(shortMA)-1], shortMA[len(shortMA)-2]
	curLong, prevLong := longMA[len(longMA)-1], longMA[len(longMA)-2]
	crossedUp := curShort > curLong && prevShort <= prevLong
	crossedDown := curShort < curLong && prevShort >= prevLong

	position, held := portfolio.Position(s.config.Symbol)

	switch {
	case crossedUp && !held:
		return []types.OrderIntent{{
			Symbol:   s.config.Symbol,
			Side:     types.SideBuy,
			Type:     types.OrderTypeMarket,
			Quantity: s.config.Quantity,
			Reason:   types.Reason{Reason: types.OrderReasonStrategy, Message: "short MA crossed above long MA"},
		}}, nil
	case crossedDown && held:
		return []types.OrderIntent{{
			Symbol:   s.config.Symbol,
			Side:     types.SideSell,
			Type:     types.OrderTypeMarket,
			Quantity: position.Quantity,
			Reason:   types.Reason{Reason: types.OrderReasonStrategy, Message: "short MA crossed below long MA"},
		}}, nil
	default:
		return nil, nil
	}
}
