package types

import (
	"time"

	"github.com/voltlab/volt-backtest/pkg/errors"
)

// Bar is one OHLCV record for one instrument at one timestamp, plus any
// pre-computed feature columns supplied by the upstream pipeline. Bars are
// immutable once produced; the feed orders them by Time, ties broken by
// Symbol.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
	// Features holds named feature columns (indicators, forecasts, the VIX
	// level) computed upstream. The engine treats values as opaque.
	Features map[string]float64 `yaml:"features,omitempty" json:"features,omitempty" csv:"-"`
}

// Feature returns a named feature column value.
func (b Bar) Feature(name string) (float64, bool) {
	v, ok := b.Features[name]

	return v, ok
}

// Validate reports whether the bar is well-formed. A bar with a missing
// required field is an input error, never a default-substituted value.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return errors.New(errors.ErrCodeMissingBarField, "bar is missing symbol")
	}

	if b.Time.IsZero() {
		return errors.Newf(errors.ErrCodeMissingBarField, "bar for %s is missing timestamp", b.Symbol)
	}

	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar for %s at %s has non-positive price", b.Symbol, b.Time.Format(time.RFC3339))
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar for %s at %s has high < low", b.Symbol, b.Time.Format(time.RFC3339))
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar for %s at %s has negative volume", b.Symbol, b.Time.Format(time.RFC3339))
	}

	return nil
}
