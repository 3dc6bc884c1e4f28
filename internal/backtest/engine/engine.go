// Package engine defines the backtest engine interface implemented by the
// versioned engines under it.
package engine

import (
	"github.com/moznion/go-optional"
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/strategy"
	"github.com/voltlab/volt-backtest/internal/types"
)

// OnProcessDataCallback is called after each timestamp is processed. Returning
// an error aborts the run.
type OnProcessDataCallback func(current int, total int) error

// RunResult pairs a finished run's report with where its artifacts were
// written.
type RunResult struct {
	StrategyName  string
	Report        types.PerformanceReport
	ResultsFolder string
}

type Engine interface {
	// Initialize the engine with the given YAML configuration content.
	Initialize(config string) error
	// SetFeed sets the bar feed for the run.
	SetFeed(f *feed.Feed) error
	// SetTradingMask restricts the run to the days the mask marks. A nil mask
	// leaves the feed untouched.
	SetTradingMask(mask feed.Mask) error
	// LoadStrategy loads a strategy with its YAML configuration. Can be called
	// multiple times; each strategy gets its own run over the same feed.
	LoadStrategy(s strategy.Strategy, config string) error
	// SetResultsFolder sets the output directory for run artifacts. Empty
	// means nothing is written to disk.
	SetResultsFolder(folder string) error
	// Run executes every loaded strategy over the feed.
	Run(onProcessData optional.Option[OnProcessDataCallback]) error
	// Results returns the reports of the completed runs, in strategy order.
	Results() []RunResult
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
