// Package feed provides the ordered, read-only bar sequence a backtest runs
// against, with the time-bounded history view handed to strategies.
package feed

import (
	"sort"
	"time"

	"github.com/voltlab/volt-backtest/internal/types"
	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Feed is a fully materialized bar sequence, validated and immutable once
// constructed. Bars are grouped by timestamp; within a timestamp they are
// ordered by symbol for determinism. The feed is safe to share across
// parallel runs because nothing mutates it after construction.
type Feed struct {
	bars    []types.Bar
	times   []time.Time
	offsets []int // start index in bars for each timestamp, len(times)+1 entries
}

// New builds a feed from a bar slice. The input must already be ordered by
// (time, symbol); an unordered feed or a duplicate (symbol, time) pair is an
// input error, reported before any simulation can start. Every bar is
// validated; a malformed bar aborts construction.
func New(bars []types.Bar) (*Feed, error) {
	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFeed, "feed contains no bars")
	}

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return nil, err
		}

		if i == 0 {
			continue
		}

		prev := bars[i-1]

		switch {
		case bar.Time.Before(prev.Time):
			return nil, errors.Newf(errors.ErrCodeUnorderedBars,
				"bar %d (%s at %s) is earlier than its predecessor",
				i, bar.Symbol, bar.Time.Format(time.RFC3339))
		case bar.Time.Equal(prev.Time):
			if bar.Symbol == prev.Symbol {
				return nil, errors.Newf(errors.ErrCodeDuplicateBar,
					"duplicate bar for %s at %s", bar.Symbol, bar.Time.Format(time.RFC3339))
			}

			if bar.Symbol < prev.Symbol {
				return nil, errors.Newf(errors.ErrCodeUnorderedBars,
					"bars at %s are not ordered by symbol", bar.Time.Format(time.RFC3339))
			}
		}
	}

	f := &Feed{bars: bars}
	for i, bar := range bars {
		if i == 0 || !bar.Time.Equal(bars[i-1].Time) {
			f.times = append(f.times, bar.Time)
			f.offsets = append(f.offsets, i)
		}
	}

	f.offsets = append(f.offsets, len(bars))

	return f, nil
}

// Len returns the number of distinct timestamps in the feed.
func (f *Feed) Len() int {
	return len(f.times)
}

// NumBars returns the total number of bars across all timestamps.
func (f *Feed) NumBars() int {
	return len(f.bars)
}

// TimeAt returns the i-th timestamp.
func (f *Feed) TimeAt(i int) time.Time {
	return f.times[i]
}

// BarsAt returns the bars released at the i-th timestamp, ordered by symbol.
// Callers must treat the returned slice as read-only.
func (f *Feed) BarsAt(i int) []types.Bar {
	return f.bars[f.offsets[i]:f.offsets[i+1]]
}

// History returns the immutable view of all bars at or before the i-th
// timestamp. This view is the only market data a strategy ever sees; bars
// after the i-th timestamp are not reachable through it.
func (f *Feed) History(i int) *History {
	return &History{bars: f.bars[:f.offsets[i+1]]}
}

// Span returns the first and last timestamps of the feed.
func (f *Feed) Span() (time.Time, time.Time) {
	return f.times[0], f.times[len(f.times)-1]
}

// Symbols returns the distinct symbols present in the feed, sorted.
func (f *Feed) Symbols() []string {
	seen := make(map[string]bool)

	var symbols []string

	for _, bar := range f.bars {
		if !seen[bar.Symbol] {
			seen[bar.Symbol] = true

			symbols = append(symbols, bar.Symbol)
		}
	}

	sort.Strings(symbols)

	return symbols
}

// Filter returns a new feed containing only the timestamps whose day the mask
// marks as true. The receiver is unchanged.
func (f *Feed) Filter(mask Mask) (*Feed, error) {
	var kept []types.Bar

	for i := range f.times {
		if mask.Contains(f.times[i]) {
			kept = append(kept, f.BarsAt(i)...)
		}
	}

	if len(kept) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFeed, "volatility mask excludes every bar in the feed")
	}

	return New(kept)
}

// Slice returns a new feed restricted to [start, end]. Zero times leave the
// corresponding bound open.
func (f *Feed) Slice(start, end time.Time) (*Feed, error) {
	var kept []types.Bar

	for _, bar := range f.bars {
		if !start.IsZero() && bar.Time.Before(start) {
			continue
		}

		if !end.IsZero() && bar.Time.After(end) {
			continue
		}

		kept = append(kept, bar)
	}

	if len(kept) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFeed, "no bars in the requested time range")
	}

	return New(kept)
}
