// Package writer serializes run artifacts to CSV files.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/voltlab/volt-backtest/internal/types"
)

// WriteSnapshotsCSV writes the equity curve, one row per snapshot. Position
// detail is flattened to a count; the full positions live in the Parquet
// archive.
func WriteSnapshotsCSV(path string, snapshots []types.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshots file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"time", "cash", "equity", "num_positions"}); err != nil {
		return fmt.Errorf("failed to write snapshots header: %w", err)
	}

	for _, snapshot := range snapshots {
		row := []string{
			snapshot.Time.UTC().Format(time.RFC3339),
			formatFloat(snapshot.Cash),
			formatFloat(snapshot.Equity),
			strconv.Itoa(len(snapshot.Positions)),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write snapshot row: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}

// WriteFillsCSV writes the settled fills in settlement order.
func WriteFillsCSV(path string, fills []types.Fill) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fills file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"order_id", "symbol", "side", "quantity", "price", "commission", "slippage", "time", "pnl"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write fills header: %w", err)
	}

	for _, fill := range fills {
		row := []string{
			fill.OrderID,
			fill.Symbol,
			string(fill.Side),
			formatFloat(fill.Quantity),
			formatFloat(fill.Price),
			formatFloat(fill.Commission),
			formatFloat(fill.Slippage),
			fill.Time.UTC().Format(time.RFC3339),
			formatFloat(fill.PnL),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write fill row: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
