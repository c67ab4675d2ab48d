// Package pricing turns backend mid-prices into executable leg prices.
package pricing

import (
	"github.com/shopspring/decimal"

	"auction-trader/internal/config"
	"auction-trader/internal/models"
)

// Default total spreads, in price currency units.
var (
	VanillaSpread = decimal.RequireFromString("5.25")
	BinarySpread  = decimal.RequireFromString("0.05")
	ForwardSpread = decimal.RequireFromString("1.05")
	MinimumPrice  = decimal.RequireFromString("0.01")
)

var two = decimal.NewFromInt(2)

// SpreadModel converts mid-prices into bid and ask prices.
type SpreadModel struct {
	Vanilla decimal.Decimal
	Binary  decimal.Decimal
	Forward decimal.Decimal
	Floor   decimal.Decimal
}

// DefaultSpreadModel returns the standard spreads.
func DefaultSpreadModel() SpreadModel {
	return SpreadModel{
		Vanilla: VanillaSpread,
		Binary:  BinarySpread,
		Forward: ForwardSpread,
		Floor:   MinimumPrice,
	}
}

// SpreadModelFromConfig builds a model from configuration.
func SpreadModelFromConfig(cfg config.SpreadConfig) SpreadModel {
	return SpreadModel{
		Vanilla: decimal.NewFromFloat(cfg.Vanilla),
		Binary:  decimal.NewFromFloat(cfg.Binary),
		Forward: decimal.NewFromFloat(cfg.Forward),
		Floor:   decimal.NewFromFloat(cfg.MinimumPrice),
	}
}

// Spread returns the default total spread for a kind.
func (m SpreadModel) Spread(kind models.InstrumentKind) decimal.Decimal {
	switch {
	case kind.IsBinary():
		return m.Binary
	case kind.IsForward():
		return m.Forward
	default:
		return m.Vanilla
	}
}

// BidAsk returns the price a user pays (BUY) or receives (SELL) for an
// instrument with the given mid-price. A non-nil forcedSpread replaces the
// kind default, zero included. Results at or below zero are floored.
func (m SpreadModel) BidAsk(mid decimal.Decimal, kind models.InstrumentKind, side models.Side, forcedSpread *decimal.Decimal) decimal.Decimal {
	spread := m.Spread(kind)
	if forcedSpread != nil {
		spread = *forcedSpread
	}
	half := spread.Div(two)

	var price decimal.Decimal
	if side == models.SideSell {
		price = mid.Sub(half)
	} else {
		price = mid.Add(half)
	}
	if !price.IsPositive() {
		return m.Floor
	}
	return price
}

// BidAsk prices with the default spread model.
func BidAsk(mid decimal.Decimal, kind models.InstrumentKind, side models.Side, forcedSpread *decimal.Decimal) decimal.Decimal {
	return DefaultSpreadModel().BidAsk(mid, kind, side, forcedSpread)
}

// Spread returns a pointer to d, for use as a forced spread.
func Spread(d decimal.Decimal) *decimal.Decimal {
	return &d
}
