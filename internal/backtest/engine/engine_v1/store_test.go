package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/internal/types"
)

type RunStoreTestSuite struct {
	suite.Suite
	store *RunStore
}

func TestRunStoreSuite(t *testing.T) {
	suite.Run(t, new(RunStoreTestSuite))
}

func (suite *RunStoreTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	store, err := NewRunStore(log)
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())
	suite.store = store
}

func (suite *RunStoreTestSuite) TearDownTest() {
	suite.NoError(suite.store.Close())
}

func (suite *RunStoreTestSuite) TestSaveAndGetOrder() {
	order := marketOrder("o1", "SPY", types.SideBuy, 10, day(1))
	order.Status = types.OrderStatusPending
	order.StrategyName = "sma_crossover"

	suite.NoError(suite.store.SaveOrder(order))

	got, err := suite.store.GetOrderByID("o1")
	suite.NoError(err)
	suite.True(got.IsSome())
	suite.Equal("SPY", got.Unwrap().Symbol)
	suite.Equal(types.OrderStatusPending, got.Unwrap().Status)
	suite.Equal("sma_crossover", got.Unwrap().StrategyName)
}

func (suite *RunStoreTestSuite) TestGetMissingOrder() {
	got, err := suite.store.GetOrderByID("nope")

	suite.NoError(err)
	suite.True(got.IsNone())
}

func (suite *RunStoreTestSuite) TestSaveOrderReplacesOnTerminalStatus() {
	order := limitOrder("o1", "SPY", types.SideBuy, 10, 95, day(1))
	order.Status = types.OrderStatusPending
	suite.NoError(suite.store.SaveOrder(order))

	order.Status = types.OrderStatusFilled
	suite.NoError(suite.store.SaveOrder(order))

	got, err := suite.store.GetOrderByID("o1")
	suite.NoError(err)
	suite.True(got.IsSome())
	suite.Equal(types.OrderStatusFilled, got.Unwrap().Status)
	suite.Equal(optional.Some(95.0), got.Unwrap().LimitPrice)

	counts, err := suite.store.CountOrdersByStatus()
	suite.NoError(err)
	suite.Equal(1, counts[types.OrderStatusFilled])
	suite.Equal(0, counts[types.OrderStatusPending])
}

func (suite *RunStoreTestSuite) TestFillsAndPnL() {
	suite.NoError(suite.store.SaveFill(types.Fill{
		OrderID: "o1", Symbol: "SPY", Side: types.SideBuy,
		Quantity: 10, Price: 100, Time: day(2), PnL: 0,
	}))
	suite.NoError(suite.store.SaveFill(types.Fill{
		OrderID: "o2", Symbol: "SPY", Side: types.SideSell,
		Quantity: 10, Price: 110, Time: day(3), PnL: 100,
	}))

	total, err := suite.store.TotalFillPnL()
	suite.NoError(err)
	suite.InDelta(100.0, total, 1e-9)
}

func (suite *RunStoreTestSuite) TestWriteParquet() {
	dir, err := os.MkdirTemp("", "runstore")
	suite.Require().NoError(err)
	defer os.RemoveAll(dir)

	order := marketOrder("o1", "SPY", types.SideBuy, 10, day(1))
	order.Status = types.OrderStatusFilled
	suite.NoError(suite.store.SaveOrder(order))
	suite.NoError(suite.store.SaveFill(types.Fill{
		OrderID: "o1", Symbol: "SPY", Side: types.SideBuy,
		Quantity: 10, Price: 100, Time: day(2),
	}))

	suite.NoError(suite.store.Write(dir))

	for _, name := range []string{"orders.parquet", "fills.parquet"} {
		info, err := os.Stat(filepath.Join(dir, name))
		suite.NoError(err)
		suite.Greater(info.Size(), int64(0))
	}
}

func (suite *RunStoreTestSuite) TestCleanupResets() {
	order := marketOrder("o1", "SPY", types.SideBuy, 10, day(1))
	suite.NoError(suite.store.SaveOrder(order))

	suite.NoError(suite.store.Cleanup())

	got, err := suite.store.GetOrderByID("o1")
	suite.NoError(err)
	suite.True(got.IsNone())
}
