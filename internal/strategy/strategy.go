// Package strategy defines the decision interface the backtest engine drives,
// plus the built-in strategy implementations.
package strategy

import (
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/types"
)

// PortfolioView is the read-only portfolio state a strategy may consult. The
// engine owns the ledger; strategies never mutate it directly.
type PortfolioView interface {
	// Cash returns the current cash balance.
	Cash() float64
	// Position returns the open position for a symbol, if any.
	Position(symbol string) (types.Position, bool)
	// Positions returns all open positions, sorted by symbol.
	Positions() []types.Position
}

// Strategy is the pluggable decision function invoked once per released
// timestamp. Implementations must derive decisions only from the provided
// history view and portfolio state; the engine guarantees the view contains
// no future bars. Any internal state a strategy keeps across calls is its own
// responsibility and is not managed by the engine.
type Strategy interface {
	// Name returns the strategy's registry name.
	Name() string
	// Initialize configures the strategy from a YAML document. An empty
	// config selects the strategy's defaults.
	Initialize(config string) error
	// Decide inspects history up to and including the current timestamp and
	// returns any order intents. Returning no intents means hold. The first
	// bar of a feed arrives with a one-bar history; strategies must tolerate
	// short lookbacks and emit nothing.
	Decide(history *feed.History, portfolio PortfolioView) ([]types.OrderIntent, error)
}
