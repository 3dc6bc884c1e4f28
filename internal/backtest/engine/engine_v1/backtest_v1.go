package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/internal/backtest/engine"
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/commission"
	"github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1/slippage"
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/internal/strategy"
	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/internal/writer"
	"github.com/voltlab/volt-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// idNamespace seeds the deterministic run and order IDs. Re-running the same
// strategy over the same feed yields the same IDs, so results are
// byte-identical across runs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("volt-backtest"))

type loadedStrategy struct {
	strategy strategy.Strategy
	config   string
}

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	strategies    []loadedStrategy
	feed          *feed.Feed
	mask          feed.Mask
	resultsFolder string
	log           *logger.Logger
	results       []engine.RunResult
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        EmptyConfig(),
		strategies:    nil,
		feed:          nil,
		mask:          nil,
		resultsFolder: "",
		log:           nil,
		results:       nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	// An empty document never reaches UnmarshalYAML, so the defaults are
	// seeded here as well.
	b.config = DefaultConfig()
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_cash", b.config.InitialCash),
		zap.String("commission_model", string(b.config.Commission.Model)),
		zap.String("slippage_model", string(b.config.Slippage.Model)),
	)

	return nil
}

// SetFeed implements engine.Engine.
func (b *BacktestEngineV1) SetFeed(f *feed.Feed) error {
	if f == nil {
		return errors.New(errors.ErrCodeNoFeedSet, "feed is nil")
	}

	b.feed = f

	return nil
}

// SetTradingMask implements engine.Engine.
func (b *BacktestEngineV1) SetTradingMask(mask feed.Mask) error {
	b.mask = mask

	return nil
}

// LoadStrategy implements engine.Engine.
func (b *BacktestEngineV1) LoadStrategy(s strategy.Strategy, config string) error {
	if s == nil {
		return errors.New(errors.ErrCodeNoStrategySet, "strategy is nil")
	}

	b.strategies = append(b.strategies, loadedStrategy{strategy: s, config: config})
	if b.log != nil {
		b.log.Debug("Strategy loaded", zap.String("name", s.Name()))
	}

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}

// Results implements engine.Engine.
func (b *BacktestEngineV1) Results() []engine.RunResult {
	return b.results
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(onProcessData optional.Option[engine.OnProcessDataCallback]) error {
	if b.log == nil {
		return errors.New(errors.ErrCodeInvalidConfiguration, "engine is not initialized")
	}

	if b.feed == nil {
		return errors.New(errors.ErrCodeNoFeedSet, "no feed set before Run")
	}

	if len(b.strategies) == 0 {
		return errors.New(errors.ErrCodeNoStrategySet, "no strategy loaded before Run")
	}

	runFeed, err := b.prepareFeed()
	if err != nil {
		return err
	}

	b.results = nil

	for _, loaded := range b.strategies {
		result, err := b.runStrategy(loaded, runFeed, onProcessData)
		if err != nil {
			return err
		}

		b.results = append(b.results, result)
	}

	return nil
}

// prepareFeed applies the configured time range and the trading mask.
func (b *BacktestEngineV1) prepareFeed() (*feed.Feed, error) {
	runFeed := b.feed

	start, end := runFeed.Span()
	if b.config.StartTime.IsSome() {
		start = b.config.StartTime.Unwrap()
	}

	if b.config.EndTime.IsSome() {
		end = b.config.EndTime.Unwrap()
	}

	if b.config.StartTime.IsSome() || b.config.EndTime.IsSome() {
		sliced, err := runFeed.Slice(start, end)
		if err != nil {
			return nil, err
		}

		runFeed = sliced
	}

	if b.mask != nil {
		filtered, err := runFeed.Filter(b.mask)
		if err != nil {
			return nil, err
		}

		runFeed = filtered
	}

	return runFeed, nil
}

func (b *BacktestEngineV1) runStrategy(loaded loadedStrategy, runFeed *feed.Feed, onProcessData optional.Option[engine.OnProcessDataCallback]) (engine.RunResult, error) {
	strat := loaded.strategy
	if err := strat.Initialize(loaded.config); err != nil {
		return engine.RunResult{}, errors.Wrapf(errors.ErrCodeStrategyConfigError, err,
			"strategy %s rejected its configuration", strat.Name())
	}

	commissionModel, err := commission.FromConfig(b.config.Commission)
	if err != nil {
		return engine.RunResult{}, err
	}

	slippageModel, err := slippage.FromConfig(b.config.Slippage)
	if err != nil {
		return engine.RunResult{}, err
	}

	start, end := runFeed.Span()
	runID := uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf(
		"%s|%d|%d|%d", strat.Name(), start.UnixNano(), end.UnixNano(), runFeed.NumBars(),
	)))

	ledger := NewLedger(b.config.InitialCash, b.config.AllowShort)
	execution := NewExecutionModel(commissionModel, slippageModel, b.config.MaxPendingOrderBars)
	metrics := NewMetricsRecorder(b.config.InitialCash, b.config.RiskFreeRate, b.config.AnnualizationFactor)

	store, err := NewRunStore(b.log)
	if err != nil {
		return engine.RunResult{}, err
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		return engine.RunResult{}, err
	}

	b.log.Info("Starting run",
		zap.String("run_id", runID.String()),
		zap.String("strategy", strat.Name()),
		zap.Int("timestamps", runFeed.Len()),
	)

	lastCloses := make(map[string]float64)
	orderSeq := 0

	for i := 0; i < runFeed.Len(); i++ {
		bars := runFeed.BarsAt(i)

		// Orders queued at earlier timestamps are priced against this
		// timestamp's bars before the strategy sees them.
		for _, bar := range bars {
			fills, completed, err := execution.EvaluateBar(bar, ledger)
			if err != nil {
				return engine.RunResult{}, err
			}

			if err := b.recordBarResults(store, metrics, fills, completed); err != nil {
				return engine.RunResult{}, err
			}
		}

		intents, err := strat.Decide(runFeed.History(i), ledger)
		if err != nil {
			return engine.RunResult{}, fmt.Errorf("strategy %s failed at %s: %w", strat.Name(), runFeed.TimeAt(i), err)
		}

		for _, intent := range intents {
			if err := intent.Validate(); err != nil {
				return engine.RunResult{}, err
			}

			orderSeq++
			order := types.Order{
				ID:           uuid.NewSHA1(runID, []byte(fmt.Sprintf("order-%d", orderSeq))).String(),
				Symbol:       intent.Symbol,
				Side:         intent.Side,
				Type:         intent.Type,
				Quantity:     intent.Quantity,
				LimitPrice:   intent.LimitPrice,
				RequestedAt:  runFeed.TimeAt(i),
				Status:       types.OrderStatusPending,
				Reason:       intentReason(intent),
				StrategyName: strat.Name(),
			}
			execution.Submit(order)

			if err := store.SaveOrder(order); err != nil {
				return engine.RunResult{}, err
			}
		}

		for _, bar := range bars {
			lastCloses[bar.Symbol] = bar.Close
		}

		equity, positions := ledger.Snapshot(lastCloses)
		if err := metrics.RecordSnapshot(types.Snapshot{
			Time:      runFeed.TimeAt(i),
			Cash:      ledger.Cash(),
			Positions: positions,
			Equity:    equity,
		}); err != nil {
			return engine.RunResult{}, err
		}

		if onProcessData.IsSome() {
			if err := onProcessData.Unwrap()(i+1, runFeed.Len()); err != nil {
				return engine.RunResult{}, err
			}
		}
	}

	// Orders still pending after the last bar have no bar left to price them.
	for _, order := range execution.Drain() {
		metrics.RecordUnfilled(order)

		if err := store.SaveOrder(order); err != nil {
			return engine.RunResult{}, err
		}
	}

	report := metrics.Report(runID.String(), strat.Name())

	resultFolder, err := b.writeArtifacts(strat.Name(), report, metrics, store)
	if err != nil {
		return engine.RunResult{}, err
	}

	b.log.Info("Run finished",
		zap.String("run_id", runID.String()),
		zap.String("strategy", strat.Name()),
		zap.Float64("final_equity", report.FinalEquity),
		zap.Int("trades", report.Trades.NumberOfTrades),
	)

	return engine.RunResult{
		StrategyName:  strat.Name(),
		Report:        report,
		ResultsFolder: resultFolder,
	}, nil
}

func (b *BacktestEngineV1) recordBarResults(store *RunStore, metrics *MetricsRecorder, fills []FillResult, completed []types.Order) error {
	for _, result := range fills {
		metrics.RecordFill(result)

		if err := store.SaveFill(result.Fill); err != nil {
			return err
		}
	}

	for _, order := range completed {
		if err := store.SaveOrder(order); err != nil {
			return err
		}

		switch order.Status {
		case types.OrderStatusRejected:
			metrics.RecordRejected(order)
			b.log.Warn("Order rejected",
				zap.String("order_id", order.ID),
				zap.String("symbol", order.Symbol),
				zap.String("reason", order.Reason.Message),
			)
		case types.OrderStatusExpired:
			metrics.RecordUnfilled(order)
		}
	}

	return nil
}

// writeArtifacts writes the run's report, CSV series and Parquet archive under
// the results folder. Returns the run's folder, empty when no folder is set.
func (b *BacktestEngineV1) writeArtifacts(strategyName string, report types.PerformanceReport, metrics *MetricsRecorder, store *RunStore) (string, error) {
	if b.resultsFolder == "" {
		return "", nil
	}

	folder := filepath.Join(b.resultsFolder, strategyName)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create results folder: %w", err)
	}

	if err := types.WritePerformanceReport(filepath.Join(folder, "report.yaml"), report); err != nil {
		return "", err
	}

	if err := writer.WriteSnapshotsCSV(filepath.Join(folder, "snapshots.csv"), metrics.Snapshots()); err != nil {
		return "", err
	}

	if err := writer.WriteFillsCSV(filepath.Join(folder, "fills.csv"), metrics.Fills()); err != nil {
		return "", err
	}

	if err := store.Write(folder); err != nil {
		return "", err
	}

	return folder, nil
}

func intentReason(intent types.OrderIntent) types.Reason {
	if intent.Reason.Reason == "" {
		return types.Reason{Reason: types.OrderReasonStrategy}
	}

	return intent.Reason
}
