package types

import "time"

// Position represents current holdings of one instrument under average-cost
// accounting. A position with zero quantity is removed from the ledger.
type Position struct {
	Symbol   string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	AvgCost  float64 `yaml:"avg_cost" json:"avg_cost" csv:"avg_cost"`
}

// MarketValue marks the position to the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// Snapshot captures the portfolio at one feed timestamp. Snapshots are
// append-only; the series forms the equity curve. Positions are sorted by
// symbol so the series is byte-for-byte reproducible.
type Snapshot struct {
	Time      time.Time  `yaml:"time" json:"time" csv:"time"`
	Cash      float64    `yaml:"cash" json:"cash" csv:"cash"`
	Positions []Position `yaml:"positions" json:"positions" csv:"-"`
	// Equity is cash plus the mark-to-market value of all open positions at
	// this snapshot's closes (the accounting identity of the ledger).
	Equity float64 `yaml:"equity" json:"equity" csv:"equity"`
}
