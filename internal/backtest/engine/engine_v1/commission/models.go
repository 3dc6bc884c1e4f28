package commission

// Zero charges no commission.
type Zero struct{}

// NewZero creates a zero commission model.
func NewZero() Model {
	return &Zero{}
}

// Calculate returns 0 for any fill.
func (c *Zero) Calculate(quantity, price float64) float64 {
	return 0.0
}

// PerShare charges a fixed rate per share with a per-order minimum, the
// shape used by Interactive Brokers' fixed pricing.
type PerShare struct {
	rate    float64
	minimum float64
}

// NewPerShare creates a per-share commission model.
func NewPerShare(rate, minimum float64) Model {
	return &PerShare{rate: rate, minimum: minimum}
}

// Calculate implements Model.
func (c *PerShare) Calculate(quantity, price float64) float64 {
	fee := c.rate * quantity
	if fee < c.minimum {
		return c.minimum
	}

	return fee
}

// PercentNotional charges a fraction of the fill's notional value.
type PercentNotional struct {
	rate float64
}

// NewPercentNotional creates a percent-of-notional commission model.
func NewPercentNotional(rate float64) Model {
	return &PercentNotional{rate: rate}
}

// Calculate implements Model.
func (c *PercentNotional) Calculate(quantity, price float64) float64 {
	return c.rate * quantity * price
}
