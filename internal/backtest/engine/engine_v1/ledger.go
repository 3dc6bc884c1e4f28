package engine

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Ledger tracks cash and open positions over a run. Position quantities are
// signed: positive for long, negative for short. Average cost follows the
// weighted-average convention: increasing a position re-averages, decreasing
// realizes PnL against the unchanged average.
type Ledger struct {
	cash       float64
	positions  map[string]types.Position
	allowShort bool
}

// NewLedger creates a ledger with the given starting cash.
func NewLedger(initialCash float64, allowShort bool) *Ledger {
	return &Ledger{
		cash:       initialCash,
		positions:  make(map[string]types.Position),
		allowShort: allowShort,
	}
}

// Cash implements strategy.PortfolioView.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Position implements strategy.PortfolioView.
func (l *Ledger) Position(symbol string) (types.Position, bool) {
	pos, ok := l.positions[symbol]

	return pos, ok
}

// Positions implements strategy.PortfolioView. Positions are returned in
// symbol order.
func (l *Ledger) Positions() []types.Position {
	out := make([]types.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})

	return out
}

// Check verifies that a fill of the given shape could be funded against the
// current ledger. A non-nil error is always a rejection error, never fatal.
func (l *Ledger) Check(symbol string, side types.Side, quantity, price, commission float64) error {
	if side == types.SideBuy {
		cost := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).
			Add(decimal.NewFromFloat(commission))
		if cost.GreaterThan(decimal.NewFromFloat(l.cash)) {
			costF, _ := cost.Float64()

			return errors.Newf(errors.ErrCodeInsufficientCash,
				"buy %s requires %.2f but only %.2f cash available", symbol, costF, l.cash)
		}

		return nil
	}

	held := 0.0
	if pos, ok := l.positions[symbol]; ok {
		held = pos.Quantity
	}
	if held-quantity < 0 {
		if !l.allowShort {
			if held <= 0 {
				return errors.Newf(errors.ErrCodeShortNotAllowed,
					"sell %s would open a short position", symbol)
			}

			return errors.Newf(errors.ErrCodeInsufficientShares,
				"sell %f %s exceeds held quantity %f", quantity, symbol, held)
		}
	}

	return nil
}

// Apply settles a fill against cash and positions. It returns the realized
// PnL of the fill net of commission, and whether the fill closed any part of
// an existing position. Opening or increasing a position realizes nothing
// beyond the commission paid.
func (l *Ledger) Apply(fill types.Fill) (float64, bool) {
	qty := fill.Quantity
	if fill.Side == types.SideSell {
		qty = -qty
	}

	priceDec := decimal.NewFromFloat(fill.Price)
	notional := decimal.NewFromFloat(fill.Quantity).Mul(priceDec)
	commissionDec := decimal.NewFromFloat(fill.Commission)

	cashDec := decimal.NewFromFloat(l.cash)
	if fill.Side == types.SideBuy {
		cashDec = cashDec.Sub(notional).Sub(commissionDec)
	} else {
		cashDec = cashDec.Add(notional).Sub(commissionDec)
	}
	l.cash, _ = cashDec.Float64()

	pos, held := l.positions[fill.Symbol]
	if !held {
		pos = types.Position{Symbol: fill.Symbol}
	}

	realized := decimal.Zero
	remaining := qty
	closed := false

	// Closing leg: the fill moves the position toward zero.
	if pos.Quantity != 0 && sameSign(pos.Quantity, -remaining) {
		closeQty := remaining
		if abs(closeQty) > abs(pos.Quantity) {
			closeQty = -pos.Quantity
		}

		avgDec := decimal.NewFromFloat(pos.AvgCost)
		closedDec := decimal.NewFromFloat(abs(closeQty))
		// Long close: (price - avg) * qty. Short close: (avg - price) * qty.
		diff := priceDec.Sub(avgDec)
		if pos.Quantity < 0 {
			diff = avgDec.Sub(priceDec)
		}
		realized = realized.Add(diff.Mul(closedDec))

		pos.Quantity += closeQty
		remaining -= closeQty
		closed = true
		if pos.Quantity == 0 {
			pos.AvgCost = 0
		}
	}

	// Opening leg: whatever remains opens or extends a position on the
	// fill's side.
	if remaining != 0 {
		if pos.Quantity == 0 {
			pos.Quantity = remaining
			pos.AvgCost = fill.Price
		} else {
			oldNotional := decimal.NewFromFloat(abs(pos.Quantity)).Mul(decimal.NewFromFloat(pos.AvgCost))
			addNotional := decimal.NewFromFloat(abs(remaining)).Mul(priceDec)
			newQty := pos.Quantity + remaining
			avg := oldNotional.Add(addNotional).Div(decimal.NewFromFloat(abs(newQty)))

			pos.Quantity = newQty
			pos.AvgCost, _ = avg.Float64()
		}
	}

	if pos.Quantity == 0 {
		delete(l.positions, fill.Symbol)
	} else {
		l.positions[fill.Symbol] = pos
	}

	realized = realized.Sub(commissionDec)
	out, _ := realized.Float64()

	return out, closed
}

// Snapshot values the portfolio at the given close prices. Symbols without a
// price are valued at their average cost.
func (l *Ledger) Snapshot(closes map[string]float64) (float64, []types.Position) {
	equity := decimal.NewFromFloat(l.cash)
	positions := l.Positions()
	for _, pos := range positions {
		price, ok := closes[pos.Symbol]
		if !ok {
			price = pos.AvgCost
		}
		equity = equity.Add(decimal.NewFromFloat(pos.MarketValue(price)))
	}

	out, _ := equity.Float64()

	return out, positions
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
