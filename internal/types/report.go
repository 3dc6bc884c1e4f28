package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Drawdown is the maximum peak-to-trough decline on the equity curve, with
// the exact peak and trough retained.
type Drawdown struct {
	// Drawdown is the fractional decline, e.g. 0.25 for a 25% drop.
	Drawdown     float64   `yaml:"drawdown"`
	PeakTime     time.Time `yaml:"peak_time"`
	PeakEquity   float64   `yaml:"peak_equity"`
	TroughTime   time.Time `yaml:"trough_time"`
	TroughEquity float64   `yaml:"trough_equity"`
}

// TradeOutcome summarizes the realized-PnL events of a run.
type TradeOutcome struct {
	// NumberOfTrades counts position-reducing fills, the events that realize PnL.
	NumberOfTrades        int     `yaml:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate"`
	AverageTradePnL       float64 `yaml:"average_trade_pnl"`
	RealizedPnL           float64 `yaml:"realized_pnl"`
}

// PerformanceReport is derived once from the full snapshot series. It is
// immutable and contains no engine-internal types, so downstream reporting
// can consume it directly.
type PerformanceReport struct {
	// RunID is the unique identifier for this backtest run.
	RunID string `yaml:"run_id"`
	// StrategyName is the name of the strategy that produced this run.
	StrategyName string    `yaml:"strategy_name"`
	StartTime    time.Time `yaml:"start_time"`
	EndTime      time.Time `yaml:"end_time"`
	InitialCash  float64   `yaml:"initial_cash"`
	FinalEquity  float64   `yaml:"final_equity"`
	// Returns is the snapshot-to-snapshot percentage change in equity.
	Returns []float64 `yaml:"returns"`
	// CumulativeReturn is final equity over initial cash, minus one.
	CumulativeReturn     float64  `yaml:"cumulative_return"`
	AnnualizedVolatility float64  `yaml:"annualized_volatility"`
	SharpeRatio          float64  `yaml:"sharpe_ratio"`
	MaxDrawdown          Drawdown `yaml:"max_drawdown"`
	// Trades summarizes realized-PnL events.
	Trades TradeOutcome `yaml:"trades"`
	// TotalFees is the sum of all commissions paid.
	TotalFees float64 `yaml:"total_fees"`
	// RejectedOrders counts orders rejected for insufficient cash or shares.
	RejectedOrders int `yaml:"rejected_orders"`
	// UnfilledOrders counts orders left without a fill at the end of the feed
	// (expired limit orders and orders emitted on the final bar).
	UnfilledOrders int `yaml:"unfilled_orders"`
}

// WritePerformanceReport writes the report to a YAML file.
func WritePerformanceReport(path string, report PerformanceReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal performance report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write performance report to file: %w", err)
	}

	return nil
}
