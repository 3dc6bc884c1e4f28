package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

type Side string

type OrderType string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	// OrderStatusExpired marks a limit order that outlived the configured
	// maximum pending duration without its price condition being met.
	OrderStatusExpired OrderStatus = "EXPIRED"
	// OrderStatusUnfilled marks an order emitted on the final bar, for which
	// no next bar exists to price a fill.
	OrderStatusUnfilled OrderStatus = "UNFILLED"
)

const (
	OrderReasonStrategy           string = "strategy"
	OrderReasonInsufficientCash   string = "insufficient_cash"
	OrderReasonInsufficientShares string = "insufficient_shares"
	OrderReasonShortNotAllowed    string = "short_not_allowed"
	OrderReasonExpired            string = "expired"
	OrderReasonEndOfFeed          string = "end_of_feed"
)

// Reason records why an order was created or why it ended in its final status.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// OrderIntent is a strategy's request to trade, before the engine assigns an
// ID and timestamp. Consumed exactly once by order execution.
type OrderIntent struct {
	Symbol   string    `yaml:"symbol" json:"symbol" validate:"required"`
	Side     Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Type     OrderType `yaml:"type" json:"type" validate:"required,oneof=MARKET LIMIT"`
	Quantity float64   `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	// LimitPrice must be set for limit orders and is ignored for market orders.
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	Reason     Reason                   `yaml:"reason" json:"reason"`
}

// Validate validates the OrderIntent struct.
func (i *OrderIntent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(i); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidIntent, "invalid order intent", err)
	}

	if i.Type == OrderTypeLimit {
		if i.LimitPrice.IsNone() {
			return errors.Newf(errors.ErrCodeInvalidIntent, "limit order for %s has no limit price", i.Symbol)
		}

		if i.LimitPrice.Unwrap() <= 0 {
			return errors.Newf(errors.ErrCodeInvalidIntent, "limit order for %s has non-positive limit price", i.Symbol)
		}
	}

	return nil
}

// Order is an accepted order intent, archived by the engine through its whole
// lifecycle.
type Order struct {
	ID           string                   `yaml:"id" json:"id" csv:"id"`
	Symbol       string                   `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side         Side                     `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type         OrderType                `yaml:"type" json:"type" csv:"type" validate:"required,oneof=MARKET LIMIT"`
	Quantity     float64                  `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	LimitPrice   optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	RequestedAt  time.Time                `yaml:"requested_at" json:"requested_at" csv:"requested_at" validate:"required"`
	Status       OrderStatus              `yaml:"status" json:"status" csv:"status"`
	Reason       Reason                   `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string                   `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}

// Fill is the realized execution of an order. Produced at most once per
// order; partial fills are out of scope.
type Fill struct {
	OrderID    string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol     string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side       Side      `yaml:"side" json:"side" csv:"side"`
	Quantity   float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price      float64   `yaml:"price" json:"price" csv:"price"`
	Commission float64   `yaml:"commission" json:"commission" csv:"commission"`
	Slippage   float64   `yaml:"slippage" json:"slippage" csv:"slippage"`
	Time       time.Time `yaml:"time" json:"time" csv:"time"`
	// PnL is the realized profit and loss of this fill, net of commission.
	// Fills that reduce an existing position realize (price - avg cost) *
	// quantity for longs, the inverse for shorts; fills that only open or
	// extend a position carry the negated commission.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
}

// Notional returns the cash value of the fill before commission.
func (f Fill) Notional() float64 {
	return f.Price * f.Quantity
}
