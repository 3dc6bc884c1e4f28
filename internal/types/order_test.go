package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

type OrderTestSuite struct {
	suite.Suite
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderTestSuite))
}

func (suite *OrderTestSuite) TestOrderIntentValidate() {
	tests := []struct {
		name    string
		intent  OrderIntent
		wantErr bool
	}{
		{
			name: "valid market buy",
			intent: OrderIntent{
				Symbol:   "SPY",
				Side:     SideBuy,
				Type:     OrderTypeMarket,
				Quantity: 10,
			},
			wantErr: false,
		},
		{
			name: "valid limit sell",
			intent: OrderIntent{
				Symbol:     "SPY",
				Side:       SideSell,
				Type:       OrderTypeLimit,
				Quantity:   5,
				LimitPrice: optional.Some(455.0),
			},
			wantErr: false,
		},
		{
			name: "missing symbol",
			intent: OrderIntent{
				Side:     SideBuy,
				Type:     OrderTypeMarket,
				Quantity: 10,
			},
			wantErr: true,
		},
		{
			name: "invalid side",
			intent: OrderIntent{
				Symbol:   "SPY",
				Side:     Side("HOLD"),
				Type:     OrderTypeMarket,
				Quantity: 10,
			},
			wantErr: true,
		},
		{
			name: "zero quantity",
			intent: OrderIntent{
				Symbol:   "SPY",
				Side:     SideBuy,
				Type:     OrderTypeMarket,
				Quantity: 0,
			},
			wantErr: true,
		},
		{
			name: "limit order without limit price",
			intent: OrderIntent{
				Symbol:   "SPY",
				Side:     SideBuy,
				Type:     OrderTypeLimit,
				Quantity: 10,
			},
			wantErr: true,
		},
		{
			name: "limit order with non-positive limit price",
			intent: OrderIntent{
				Symbol:     "SPY",
				Side:       SideBuy,
				Type:       OrderTypeLimit,
				Quantity:   10,
				LimitPrice: optional.Some(0.0),
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := tc.intent.Validate()
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.IsInput(err))
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *OrderTestSuite) TestOrderValidate() {
	order := Order{
		ID:          "order-1",
		Symbol:      "SPY",
		Side:        SideBuy,
		Type:        OrderTypeMarket,
		Quantity:    10,
		RequestedAt: time.Date(2023, 6, 15, 9, 30, 0, 0, time.UTC),
		Status:      OrderStatusPending,
		Reason:      Reason{Reason: OrderReasonStrategy, Message: "buy signal"},
	}
	suite.NoError(order.Validate())

	order.Quantity = -5
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestFillNotional() {
	fill := Fill{
		OrderID:  "order-1",
		Symbol:   "SPY",
		Side:     SideBuy,
		Quantity: 10,
		Price:    101.0,
	}
	suite.Equal(1010.0, fill.Notional())
}
