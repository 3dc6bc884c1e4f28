package engine

import (
	"math"

	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// MetricsRecorder accumulates the equity curve and trade events of a run and
// derives the performance report once at the end. It never feeds anything
// back into the simulation.
type MetricsRecorder struct {
	initialCash  float64
	riskFreeRate float64
	annualFactor float64

	snapshots []types.Snapshot
	trades    []float64
	fills     []types.Fill
	rejected  []types.Order
	unfilled  []types.Order
	totalFees float64
}

// NewMetricsRecorder creates a recorder for a run with the given starting
// cash. annualFactor is the number of return periods per year.
func NewMetricsRecorder(initialCash, riskFreeRate, annualFactor float64) *MetricsRecorder {
	return &MetricsRecorder{
		initialCash:  initialCash,
		riskFreeRate: riskFreeRate,
		annualFactor: annualFactor,
	}
}

// RecordSnapshot appends a portfolio snapshot to the equity curve. Snapshot
// times must be strictly increasing; a violation means the clock ran
// backwards and is fatal.
func (m *MetricsRecorder) RecordSnapshot(snapshot types.Snapshot) error {
	if n := len(m.snapshots); n > 0 && !snapshot.Time.After(m.snapshots[n-1].Time) {
		return errors.Newf(errors.ErrCodeLookaheadSnapshot,
			"snapshot at %s does not advance past %s", snapshot.Time, m.snapshots[n-1].Time)
	}

	m.snapshots = append(m.snapshots, snapshot)

	return nil
}

// RecordFill records a settled fill. Fills that closed part of a position are
// trade events and contribute their PnL to the trade outcome.
func (m *MetricsRecorder) RecordFill(result FillResult) {
	m.fills = append(m.fills, result.Fill)
	m.totalFees += result.Fill.Commission
	if result.Closed {
		m.trades = append(m.trades, result.Fill.PnL)
	}
}

// RecordRejected records an order rejected at fill evaluation.
func (m *MetricsRecorder) RecordRejected(order types.Order) {
	m.rejected = append(m.rejected, order)
}

// RecordUnfilled records an order that expired or outlived the feed.
func (m *MetricsRecorder) RecordUnfilled(order types.Order) {
	m.unfilled = append(m.unfilled, order)
}

// Snapshots returns the recorded equity curve.
func (m *MetricsRecorder) Snapshots() []types.Snapshot {
	return m.snapshots
}

// Fills returns the recorded fills in settlement order.
func (m *MetricsRecorder) Fills() []types.Fill {
	return m.fills
}

// Report derives the performance report from everything recorded so far.
func (m *MetricsRecorder) Report(runID, strategyName string) types.PerformanceReport {
	report := types.PerformanceReport{
		RunID:          runID,
		StrategyName:   strategyName,
		InitialCash:    m.initialCash,
		TotalFees:      m.totalFees,
		RejectedOrders: len(m.rejected),
		UnfilledOrders: len(m.unfilled),
		Trades:         m.tradeOutcome(),
	}

	if len(m.snapshots) == 0 {
		report.FinalEquity = m.initialCash

		return report
	}

	report.StartTime = m.snapshots[0].Time
	report.EndTime = m.snapshots[len(m.snapshots)-1].Time
	report.FinalEquity = m.snapshots[len(m.snapshots)-1].Equity
	if m.initialCash > 0 {
		report.CumulativeReturn = report.FinalEquity/m.initialCash - 1
	}

	report.Returns = m.returns()
	report.AnnualizedVolatility = m.annualizedVolatility(report.Returns)
	report.SharpeRatio = m.sharpeRatio(report.Returns)
	report.MaxDrawdown = m.maxDrawdown()

	return report
}

// returns computes the period returns of the equity curve. One snapshot
// yields an empty series.
func (m *MetricsRecorder) returns() []float64 {
	if len(m.snapshots) < 2 {
		return []float64{}
	}

	out := make([]float64, 0, len(m.snapshots)-1)
	for i := 1; i < len(m.snapshots); i++ {
		prev := m.snapshots[i-1].Equity
		if prev == 0 {
			out = append(out, 0)

			continue
		}
		out = append(out, m.snapshots[i].Equity/prev-1)
	}

	return out
}

func (m *MetricsRecorder) annualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	return stddev(returns) * math.Sqrt(m.annualFactor)
}

func (m *MetricsRecorder) sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	periodRiskFree := m.riskFreeRate / m.annualFactor
	excess := mean(returns) - periodRiskFree

	return excess / sd * math.Sqrt(m.annualFactor)
}

// maxDrawdown scans the equity curve for the largest peak-to-trough decline.
// Ties keep the earliest peak and its earliest trough.
func (m *MetricsRecorder) maxDrawdown() types.Drawdown {
	if len(m.snapshots) == 0 {
		return types.Drawdown{}
	}

	peak := m.snapshots[0]
	worst := types.Drawdown{
		PeakTime:     peak.Time,
		PeakEquity:   peak.Equity,
		TroughTime:   peak.Time,
		TroughEquity: peak.Equity,
	}

	for _, snapshot := range m.snapshots[1:] {
		if snapshot.Equity > peak.Equity {
			peak = snapshot

			continue
		}

		if peak.Equity <= 0 {
			continue
		}

		dd := (peak.Equity - snapshot.Equity) / peak.Equity
		if dd > worst.Drawdown {
			worst = types.Drawdown{
				Drawdown:     dd,
				PeakTime:     peak.Time,
				PeakEquity:   peak.Equity,
				TroughTime:   snapshot.Time,
				TroughEquity: snapshot.Equity,
			}
		}
	}

	return worst
}

func (m *MetricsRecorder) tradeOutcome() types.TradeOutcome {
	outcome := types.TradeOutcome{NumberOfTrades: len(m.trades)}
	for _, pnl := range m.trades {
		outcome.RealizedPnL += pnl
		if pnl > 0 {
			outcome.NumberOfWinningTrades++
		} else if pnl < 0 {
			outcome.NumberOfLosingTrades++
		}
	}

	if outcome.NumberOfTrades > 0 {
		outcome.WinRate = float64(outcome.NumberOfWinningTrades) / float64(outcome.NumberOfTrades)
		outcome.AverageTradePnL = outcome.RealizedPnL / float64(outcome.NumberOfTrades)
	}

	return outcome
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	mu := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mu
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}
