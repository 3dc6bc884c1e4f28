package feed

import (
	"time"

	"github.com/voltlab/volt-backtest/internal/types"
)

// History is the time-bounded, immutable view of the feed given to a
// strategy. It holds only bars at or before the current simulation time, so a
// strategy cannot reach future data even by reference. Accessors return
// copies; the underlying bars are never exposed for mutation.
type History struct {
	bars []types.Bar
}

// Len returns the number of visible bars.
func (h *History) Len() int {
	return len(h.bars)
}

// At returns a copy of the i-th visible bar, oldest first.
func (h *History) At(i int) types.Bar {
	bar := h.bars[i]
	if bar.Features != nil {
		features := make(map[string]float64, len(bar.Features))
		for k, v := range bar.Features {
			features[k] = v
		}

		bar.Features = features
	}

	return bar
}

// Now returns the current simulation time, the timestamp of the newest
// visible bar.
func (h *History) Now() time.Time {
	return h.bars[len(h.bars)-1].Time
}

// Latest returns the newest visible bar for a symbol.
func (h *History) Latest(symbol string) (types.Bar, bool) {
	for i := len(h.bars) - 1; i >= 0; i-- {
		if h.bars[i].Symbol == symbol {
			return h.At(i), true
		}
	}

	return types.Bar{}, false
}

// Closes returns the close series for a symbol, oldest first.
func (h *History) Closes(symbol string) []float64 {
	var closes []float64

	for _, bar := range h.bars {
		if bar.Symbol == symbol {
			closes = append(closes, bar.Close)
		}
	}

	return closes
}

// FeatureSeries returns a named feature column for a symbol, oldest first.
// Bars without the feature are skipped.
func (h *History) FeatureSeries(symbol, name string) []float64 {
	var values []float64

	for _, bar := range h.bars {
		if bar.Symbol != symbol {
			continue
		}

		if v, ok := bar.Feature(name); ok {
			values = append(values, v)
		}
	}

	return values
}
