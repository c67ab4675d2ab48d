package models

import "github.com/shopspring/decimal"

// PayoffPoint is the strategy value at expiry for one spot price.
type PayoffPoint struct {
	Spot  decimal.Decimal
	Total decimal.Decimal
	Legs  []decimal.Decimal // per-leg contribution, in leg order
}

// PayoffSummary represents the headline figures of a payoff curve over the
// sampled range.
type PayoffSummary struct {
	MaxProfit  decimal.Decimal
	MaxLoss    decimal.Decimal
	Breakevens []decimal.Decimal
	// Unbounded flags are set when the curve is still moving at the range edge.
	UpsideUnbounded   bool
	DownsideUnbounded bool
}
