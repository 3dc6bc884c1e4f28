package engine

import (
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/commission"
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/slippage"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// FillResult pairs a settled fill with whether it closed any part of an
// existing position.
type FillResult struct {
	Fill   types.Fill
	Closed bool
}

// ExecutionModel holds the book of pending orders and prices them against
// incoming bars. Orders always fill no earlier than the bar after the one
// whose close produced them: market orders at that bar's open adjusted for
// slippage, limit orders at the limit price when the bar's range touches it.
type ExecutionModel struct {
	commission     commission.Model
	slippage       slippage.Model
	maxPendingBars int
	pending        []*pendingOrder
}

type pendingOrder struct {
	order      types.Order
	barsWaited int
}

// NewExecutionModel creates an execution model with the given cost models.
// maxPendingBars of zero means limit orders never expire.
func NewExecutionModel(commissionModel commission.Model, slippageModel slippage.Model, maxPendingBars int) *ExecutionModel {
	return &ExecutionModel{
		commission:     commissionModel,
		slippage:       slippageModel,
		maxPendingBars: maxPendingBars,
		pending:        nil,
	}
}

// Submit adds an order to the pending book. The order keeps its submission
// order relative to other orders on the same symbol.
func (e *ExecutionModel) Submit(order types.Order) {
	order.Status = types.OrderStatusPending
	e.pending = append(e.pending, &pendingOrder{order: order})
}

// PendingCount returns the number of orders still awaiting evaluation.
func (e *ExecutionModel) PendingCount() int {
	return len(e.pending)
}

// EvaluateBar prices every pending order on the bar's symbol, settling fills
// against the ledger in submission order so that funding checks see earlier
// fills of the same bar. It returns the fills settled and the orders that
// reached a terminal status. The only non-nil error is a lookahead violation,
// which is fatal.
func (e *ExecutionModel) EvaluateBar(bar types.Bar, ledger *Ledger) ([]FillResult, []types.Order, error) {
	var fills []FillResult

	var completed []types.Order

	remaining := e.pending[:0]
	for _, po := range e.pending {
		if po.order.Symbol != bar.Symbol {
			remaining = append(remaining, po)

			continue
		}

		if !bar.Time.After(po.order.RequestedAt) {
			return nil, nil, errors.Newf(errors.ErrCodeLookaheadFill,
				"order %s requested at %s evaluated against bar at %s",
				po.order.ID, po.order.RequestedAt, bar.Time)
		}

		price, fillable := e.fillPrice(po.order, bar)
		if !fillable {
			po.barsWaited++
			if e.maxPendingBars > 0 && po.barsWaited >= e.maxPendingBars {
				po.order.Status = types.OrderStatusExpired
				po.order.Reason = types.Reason{
					Reason:  types.OrderReasonExpired,
					Message: "price condition not met within the pending window",
				}
				completed = append(completed, po.order)

				continue
			}
			remaining = append(remaining, po)

			continue
		}

		slip := 0.0
		if po.order.Type == types.OrderTypeMarket {
			slip = price - bar.Open
		}

		fee := e.commission.Calculate(po.order.Quantity, price)
		if err := ledger.Check(po.order.Symbol, po.order.Side, po.order.Quantity, price, fee); err != nil {
			po.order.Status = types.OrderStatusRejected
			po.order.Reason = types.Reason{
				Reason:  rejectionReason(err),
				Message: err.Error(),
			}
			completed = append(completed, po.order)

			continue
		}

		fill := types.Fill{
			OrderID:    po.order.ID,
			Symbol:     po.order.Symbol,
			Side:       po.order.Side,
			Quantity:   po.order.Quantity,
			Price:      price,
			Commission: fee,
			Slippage:   slip,
			Time:       bar.Time,
		}
		realized, closed := ledger.Apply(fill)
		fill.PnL = realized

		po.order.Status = types.OrderStatusFilled
		completed = append(completed, po.order)
		fills = append(fills, FillResult{Fill: fill, Closed: closed})
	}
	e.pending = remaining

	return fills, completed, nil
}

// Drain marks every remaining pending order unfilled. Called once the feed is
// exhausted.
func (e *ExecutionModel) Drain() []types.Order {
	out := make([]types.Order, 0, len(e.pending))
	for _, po := range e.pending {
		po.order.Status = types.OrderStatusUnfilled
		po.order.Reason = types.Reason{
			Reason:  types.OrderReasonEndOfFeed,
			Message: "no bar after the order's request time",
		}
		out = append(out, po.order)
	}
	e.pending = nil

	return out
}

// fillPrice returns the execution price for an order against a bar, and
// whether the order can fill at all.
func (e *ExecutionModel) fillPrice(order types.Order, bar types.Bar) (float64, bool) {
	if order.Type == types.OrderTypeMarket {
		return e.slippage.Adjust(bar.Open, order.Side, order.Quantity, bar.Volume), true
	}

	limit := order.LimitPrice.Unwrap()
	if order.Side == types.SideBuy {
		if bar.Low > limit {
			return 0, false
		}
		// The open can be better than the limit; never fill worse than it.
		if bar.Open < limit {
			return bar.Open, true
		}

		return limit, true
	}

	if bar.High < limit {
		return 0, false
	}
	if bar.Open > limit {
		return bar.Open, true
	}

	return limit, true
}

func rejectionReason(err error) string {
	switch {
	case errors.HasCode(err, errors.ErrCodeInsufficientCash):
		return types.OrderReasonInsufficientCash
	case errors.HasCode(err, errors.ErrCodeInsufficientShares):
		return types.OrderReasonInsufficientShares
	case errors.HasCode(err, errors.ErrCodeShortNotAllowed):
		return types.OrderReasonShortNotAllowed
	default:
		return types.OrderReasonStrategy
	}
}
