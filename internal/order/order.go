// Package order builds submittable order drafts from priced legs.
package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
)

// NetPricer computes the signed aggregate premium of a set of legs. The
// trading API owns the rounding policy; callers treat it as opaque.
type NetPricer interface {
	NetPrice(legs []models.Leg, prices []decimal.Decimal, precision int32) (decimal.Decimal, error)
}

// IDGenerator produces client order identifiers.
type IDGenerator func() string

// NewClientOrderID returns a fresh random client order id.
func NewClientOrderID() string {
	return uuid.NewString()
}

// LocalNetPricer sums side-signed price times quantity and rounds to the
// requested precision. BUY legs add premium, SELL legs subtract it.
type LocalNetPricer struct{}

// NetPrice implements NetPricer.
func (LocalNetPricer) NetPrice(legs []models.Leg, prices []decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if len(legs) != len(prices) {
		return decimal.Zero, fmt.Errorf("net price: %d legs but %d prices", len(legs), len(prices))
	}
	total := decimal.Zero
	for i, l := range legs {
		total = total.Add(prices[i].Mul(l.Quantity).Mul(l.Side.Sign()))
	}
	return total.Round(precision), nil
}

// UnitPrice divides a net price by a strategy size, as shown for
// structures quoted per unit.
func UnitPrice(net, size decimal.Decimal, precision int32) decimal.Decimal {
	if !size.IsPositive() {
		return net
	}
	return net.Div(size).Round(precision)
}

// Builder assembles order drafts.
type Builder struct {
	Pricer    NetPricer
	Precision int32
	NewID     IDGenerator
	Now       func() time.Time
}

// NewBuilder creates a Builder with a local net pricer.
func NewBuilder(precision int32) *Builder {
	return &Builder{
		Pricer:    LocalNetPricer{},
		Precision: precision,
		NewID:     NewClientOrderID,
		Now:       time.Now,
	}
}

// Build creates a draft with a fresh client order id. The draft is
// complete only when every leg carries a premium; an incomplete draft has a
// zero net price and must not be submitted. Legs reach the net pricer
// exactly as given.
func (b *Builder) Build(priced []models.PricedLeg) (models.OrderDraft, error) {
	draft := models.OrderDraft{
		ClientOrderID:   b.NewID(),
		Legs:            make([]models.Leg, len(priced)),
		ReferencePrices: make([]*decimal.Decimal, len(priced)),
		TotalNetPrice:   decimal.Zero,
		CreatedAt:       b.Now(),
	}

	complete := len(priced) > 0
	prices := make([]decimal.Decimal, 0, len(priced))
	for i, p := range priced {
		draft.Legs[i] = p.Leg
		draft.ReferencePrices[i] = p.Premium
		if p.Premium == nil {
			complete = false
			continue
		}
		prices = append(prices, *p.Premium)
	}
	if !complete {
		return draft, nil
	}

	net, err := b.Pricer.NetPrice(draft.Legs, prices, b.Precision)
	if err != nil {
		return draft, err
	}
	draft.TotalNetPrice = net
	draft.Complete = true
	return draft, nil
}
