package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	bt "github.com/voltlab/volt-backtest/internal/backtest/engine"
	engine "github.com/voltlab/volt-backtest/internal/backtest/engine/engine_v1"
	"github.com/voltlab/volt-backtest/internal/feed"
	"github.com/voltlab/volt-backtest/internal/logger"
	"github.com/voltlab/volt-backtest/internal/strategy"
)

// backtestAction is the core logic executed by the CLI command. It loads the
// bar data, builds the engine and runs every requested strategy over it.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	dataPath := cmd.String("data")
	configPath := cmd.String("config")
	strategyNames := cmd.StringSlice("strategy")
	strategyConfigPath := cmd.String("strategy-config")
	resultsFolder := cmd.String("results")
	maskColumn := cmd.String("mask-column")
	maskThreshold := cmd.Float64("mask-threshold")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")

	log, err := newLogger(cmd.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	engineConfig := ""
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read engine config: %w", err)
		}
		engineConfig = string(content)
	}

	strategyConfig := ""
	if strategyConfigPath != "" {
		content, err := os.ReadFile(strategyConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read strategy config: %w", err)
		}
		strategyConfig = string(content)
	}

	loader, err := feed.NewDuckDBLoader(log)
	if err != nil {
		return err
	}
	defer loader.Close()

	bars, err := loader.Load(dataPath, timestampOption(start), timestampOption(end))
	if err != nil {
		return err
	}

	barFeed, err := feed.New(bars)
	if err != nil {
		return err
	}

	backtester := engine.NewBacktestEngineV1()
	if err := backtester.Initialize(engineConfig); err != nil {
		return err
	}

	if err := backtester.SetFeed(barFeed); err != nil {
		return err
	}

	if maskColumn != "" {
		mask := feed.MaskFromFeature(bars, maskColumn, maskThreshold)
		if err := backtester.SetTradingMask(mask); err != nil {
			return err
		}
	}

	registry := strategy.DefaultRegistry()
	for _, name := range strategyNames {
		strat, err := registry.New(name)
		if err != nil {
			return fmt.Errorf("unknown strategy %q, available: %s", name, strings.Join(registry.List(), ", "))
		}

		if err := backtester.LoadStrategy(strat, strategyConfig); err != nil {
			return err
		}
	}

	if err := backtester.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	bar := progressbar.Default(int64(barFeed.Len() * len(strategyNames)))
	callback := bt.OnProcessDataCallback(func(current, total int) error {
		return bar.Add(1)
	})

	if err := backtester.Run(optional.Some(callback)); err != nil {
		return err
	}

	for _, result := range backtester.Results() {
		fmt.Printf("\n%s: final equity %.2f, return %.2f%%, max drawdown %.2f%%, trades %d\n",
			result.StrategyName,
			result.Report.FinalEquity,
			result.Report.CumulativeReturn*100,
			result.Report.MaxDrawdown.Drawdown*100,
			result.Report.Trades.NumberOfTrades,
		)
		if result.ResultsFolder != "" {
			fmt.Printf("results written to %s\n", result.ResultsFolder)
		}
	}

	return nil
}

func newLogger(verbose bool) (*logger.Logger, error) {
	if verbose {
		return logger.NewDevelopmentLogger()
	}

	return logger.NewLogger()
}

func timestampOption(t time.Time) optional.Option[time.Time] {
	if t.IsZero() {
		return optional.None[time.Time]()
	}

	return optional.Some(t)
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run trading strategies over historical bar data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the bar data file (CSV or Parquet)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "strategy",
				Aliases: []string{"S"},
				Usage:   "Strategy to run; repeat to run several",
				Value:   []string{strategy.SMACrossoverName},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the engine configuration YAML",
			},
			&cli.StringFlag{
				Name:  "strategy-config",
				Usage: "Path to the strategy configuration YAML",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Directory for run artifacts",
				Value:   "results",
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format (or other RFC3339 compatible)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format (or other RFC3339 compatible)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.StringFlag{
				Name:  "mask-column",
				Usage: "Feature column used to mark tradable days (e.g. vix)",
			},
			&cli.Float64Flag{
				Name:  "mask-threshold",
				Usage: "Days where the mask column reaches this value are traded",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
