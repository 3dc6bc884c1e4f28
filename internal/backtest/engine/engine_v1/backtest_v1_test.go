package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"github.com/voltlab/volt-backtest/internal/backtest/engine"
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/strategy"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/mocks"
)

type BacktestV1TestSuite struct {
	suite.Suite
}

func TestBacktestV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestV1TestSuite))
}

// scriptedStrategy runs an inline decide function, so tests can drive the
// engine without a real strategy.
type scriptedStrategy struct {
	name   string
	decide func(history *feed.History, portfolio strategy.PortfolioView) ([]types.OrderIntent, error)
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Initialize(config string) error { return nil }

func (s *scriptedStrategy) Decide(history *feed.History, portfolio strategy.PortfolioView) ([]types.OrderIntent, error) {
	return s.decide(history, portfolio)
}

func buyOnce(symbol string, quantity float64) *scriptedStrategy {
	return &scriptedStrategy{
		name: "buy_once",
		decide: func(history *feed.History, portfolio strategy.PortfolioView) ([]types.OrderIntent, error) {
			if history.Len() > 1 {
				return nil, nil
			}

			return []types.OrderIntent{{
				Symbol:   symbol,
				Side:     types.SideBuy,
				Type:     types.OrderTypeMarket,
				Quantity: quantity,
			}}, nil
		},
	}
}

func (suite *BacktestV1TestSuite) newEngine(initialCash float64) engine.Engine {
	e := NewBacktestEngineV1()
	suite.Require().NoError(e.Initialize(configYAML(initialCash)))

	return e
}

// configYAML pins zero slippage so fill prices in the assertions stay
// at the raw bar opens.
func configYAML(initialCash float64) string {
	return fmt.Sprintf("initial_cash: %s\nannualization_factor: 252\nslippage:\n  model: zero\n",
		strconv.FormatFloat(initialCash, 'f', -1, 64))
}

func feedFromBars(suite *BacktestV1TestSuite, bars []types.Bar) *feed.Feed {
	f, err := feed.New(bars)
	suite.Require().NoError(err)

	return f
}

func (suite *BacktestV1TestSuite) TestInitializeEmptyConfigUsesDefaults() {
	e := NewBacktestEngineV1()

	suite.Require().NoError(e.Initialize(""))
}

func (suite *BacktestV1TestSuite) TestMinimalConfigKeepsDefaults() {
	e := NewBacktestEngineV1()
	suite.Require().NoError(e.Initialize("initial_cash: 10000\n"))
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	results := e.Results()
	suite.Require().Len(results, 1)

	report := results[0].Report
	suite.False(math.IsNaN(report.SharpeRatio))
	suite.False(math.IsNaN(report.AnnualizedVolatility))

	// The default five basis points of slippage lift the buy above the
	// raw next-bar open of 101.
	fillPrice := 101 * 1.0005
	suite.InDelta(10000-10*fillPrice+10*104, report.FinalEquity, 1e-9)
}

func (suite *BacktestV1TestSuite) TestRunWithoutFeedFails() {
	e := suite.newEngine(10000)
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	err := e.Run(optional.None[engine.OnProcessDataCallback]())

	suite.Error(err)
}

func (suite *BacktestV1TestSuite) TestRunWithoutStrategyFails() {
	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{barOn("SPY", 1, 100, 101, 99, 100)})
	suite.Require().NoError(e.SetFeed(f))

	err := e.Run(optional.None[engine.OnProcessDataCallback]())

	suite.Error(err)
}

func (suite *BacktestV1TestSuite) TestOneBarFeedLeavesOrderUnfilled() {
	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{barOn("SPY", 1, 100, 101, 99, 100)})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	results := e.Results()
	suite.Require().Len(results, 1)

	report := results[0].Report
	suite.Equal(10000.0, report.FinalEquity)
	suite.Empty(report.Returns)
	suite.Equal(1, report.UnfilledOrders)
	suite.Equal(0, report.Trades.NumberOfTrades)
}

func (suite *BacktestV1TestSuite) TestBuyFillsAtNextBarOpen() {
	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	report := e.Results()[0].Report

	// Fill at the second bar's open of 101: cash 10000 - 1010 = 8990.
	// Final equity values the 10 shares at the last close of 104.
	suite.InDelta(8990+10*104, report.FinalEquity, 1e-9)
	suite.Len(report.Returns, 2)
	// First snapshot predates the fill, so the first return reflects the
	// move from 10000 to 8990 + 10*102.
	suite.InDelta((8990+10*102)/10000.0-1, report.Returns[0], 1e-9)
	suite.Equal(0, report.RejectedOrders)
	suite.Equal(0, report.UnfilledOrders)
}

func (suite *BacktestV1TestSuite) TestInsufficientCashIsRecordedAndRunContinues() {
	e := suite.newEngine(100)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	report := e.Results()[0].Report
	suite.Equal(1, report.RejectedOrders)
	suite.Equal(100.0, report.FinalEquity)
	suite.Len(report.Returns, 2)
	suite.Equal(0.0, report.Returns[0])
}

func (suite *BacktestV1TestSuite) TestTradingMaskLimitsDecisions() {
	decisions := 0
	counting := &scriptedStrategy{
		name: "counting",
		decide: func(history *feed.History, portfolio strategy.PortfolioView) ([]types.OrderIntent, error) {
			decisions++

			return nil, nil
		},
	}

	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))

	mask := feed.Mask{}
	mask.MarkDay(day(1))
	mask.MarkDay(day(3))
	suite.Require().NoError(e.SetTradingMask(mask))
	suite.Require().NoError(e.LoadStrategy(counting, ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	suite.Equal(2, decisions)
	suite.Len(e.Results()[0].Report.Returns, 1)
}

func (suite *BacktestV1TestSuite) TestProcessDataCallback() {
	calls := 0
	callback := engine.OnProcessDataCallback(func(current, total int) error {
		calls++
		suite.Equal(3, total)

		return nil
	})

	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))

	suite.Require().NoError(e.Run(optional.Some(callback)))

	suite.Equal(3, calls)
}

func (suite *BacktestV1TestSuite) TestRoundTripIsRealized() {
	roundTrip := &scriptedStrategy{
		name: "round_trip",
		decide: func(history *feed.History, portfolio strategy.PortfolioView) ([]types.OrderIntent, error) {
			switch history.Len() {
			case 1:
				return []types.OrderIntent{{
					Symbol: "SPY", Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: 10,
				}}, nil
			case 2:
				return []types.OrderIntent{{
					Symbol: "SPY", Side: types.SideSell, Type: types.OrderTypeMarket, Quantity: 10,
				}}, nil
			default:
				return nil, nil
			}
		},
	}

	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
		barOn("SPY", 3, 103, 105, 102, 104),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(roundTrip, ""))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	report := e.Results()[0].Report
	suite.Equal(1, report.Trades.NumberOfTrades)
	suite.Equal(1, report.Trades.NumberOfWinningTrades)
	// Bought at 101, sold at the third bar's open of 103.
	suite.InDelta(20.0, report.Trades.RealizedPnL, 1e-9)
	suite.InDelta(10000+20, report.FinalEquity, 1e-9)
}

func (suite *BacktestV1TestSuite) TestRepeatRunsAreByteIdentical() {
	generator := mocks.NewDataGenerator(42)
	config := mocks.DefaultConfig()
	config.Symbol = "SPY"
	bars := generator.Generate(config)

	run := func(dir string) []byte {
		e := NewBacktestEngineV1()
		suite.Require().NoError(e.Initialize("initial_cash: 100000\nannualization_factor: 252\n"))

		f, err := feed.New(bars)
		suite.Require().NoError(err)
		suite.Require().NoError(e.SetFeed(f))

		registry := strategy.DefaultRegistry()
		strat, err := registry.New(strategy.SMACrossoverName)
		suite.Require().NoError(err)
		suite.Require().NoError(e.LoadStrategy(strat, "symbol: SPY\n"))
		suite.Require().NoError(e.SetResultsFolder(dir))

		suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

		data, err := os.ReadFile(filepath.Join(e.Results()[0].ResultsFolder, "report.yaml"))
		suite.Require().NoError(err)

		return data
	}

	dirA, err := os.MkdirTemp("", "runa")
	suite.Require().NoError(err)
	defer os.RemoveAll(dirA)

	dirB, err := os.MkdirTemp("", "runb")
	suite.Require().NoError(err)
	defer os.RemoveAll(dirB)

	suite.Equal(run(dirA), run(dirB))
}

func (suite *BacktestV1TestSuite) TestArtifactsWritten() {
	dir, err := os.MkdirTemp("", "artifacts")
	suite.Require().NoError(err)
	defer os.RemoveAll(dir)

	e := suite.newEngine(10000)
	f := feedFromBars(suite, []types.Bar{
		barOn("SPY", 1, 100, 101, 99, 100),
		barOn("SPY", 2, 101, 103, 100, 102),
	})
	suite.Require().NoError(e.SetFeed(f))
	suite.Require().NoError(e.LoadStrategy(buyOnce("SPY", 10), ""))
	suite.Require().NoError(e.SetResultsFolder(dir))

	suite.Require().NoError(e.Run(optional.None[engine.OnProcessDataCallback]()))

	folder := e.Results()[0].ResultsFolder
	for _, name := range []string{"report.yaml", "snapshots.csv", "fills.csv", "orders.parquet", "fills.parquet"} {
		_, err := os.Stat(filepath.Join(folder, name))
		suite.NoError(err, name)
	}
}

func (suite *BacktestV1TestSuite) TestGetConfigSchema() {
	e := suite.newEngine(10000)

	schema, err := e.GetConfigSchema()

	suite.NoError(err)
	suite.Contains(schema, "initial_cash")
}
