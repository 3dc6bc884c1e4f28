package feed

import (
	"time"

	"github.com/voltlab/volt-backtest/internal/types"
)

const dayLayout = "2006-01-02"

// Mask is the high-volatility filter supplied upstream: one boolean per day.
// A timestamp passes the filter when its UTC day is marked true.
type Mask map[string]bool

// Contains reports whether the mask admits the given timestamp's day.
func (m Mask) Contains(t time.Time) bool {
	return m[t.UTC().Format(dayLayout)]
}

// MarkDay marks a day as high-volatility.
func (m Mask) MarkDay(t time.Time) {
	m[t.UTC().Format(dayLayout)] = true
}

// MaskFromFeature derives a mask from a feature column, marking each day on
// which any bar's feature value meets or exceeds the threshold. This is how
// the CLI turns a VIX column into the day filter.
func MaskFromFeature(bars []types.Bar, column string, threshold float64) Mask {
	mask := make(Mask)

	for _, bar := range bars {
		if v, ok := bar.Feature(column); ok && v >= threshold {
			mask.MarkDay(bar.Time)
		}
	}

	return mask
}
