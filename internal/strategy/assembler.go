package strategy

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
)

// PriceResolver resolves leg prices with a reference price fallback.
type PriceResolver interface {
	ResolveWithFallback(ctx context.Context, req pricing.PriceRequest, contract models.Contract) (*decimal.Decimal, models.PriceSource)
	Spreads() pricing.SpreadModel
}

// Assembly is the assembler output: priced legs in description order.
type Assembly struct {
	Description string
	Priced      []models.PricedLeg
}

// Legs returns the bare legs.
func (a Assembly) Legs() []models.Leg {
	out := make([]models.Leg, len(a.Priced))
	for i, p := range a.Priced {
		out[i] = p.Leg
	}
	return out
}

// ReferencePrices returns the leg premiums, nil where unresolved.
func (a Assembly) ReferencePrices() []*decimal.Decimal {
	out := make([]*decimal.Decimal, len(a.Priced))
	for i, p := range a.Priced {
		out[i] = p.Premium
	}
	return out
}

// Complete reports whether every leg is priced.
func (a Assembly) Complete() bool {
	for _, p := range a.Priced {
		if p.Premium == nil {
			return false
		}
	}
	return len(a.Priced) > 0
}

// Assembler turns strategy descriptions into priced legs.
type Assembler struct {
	resolver      PriceResolver
	logger        zerolog.Logger
	maxGoroutines int
}

// NewAssembler creates an Assembler. maxGoroutines bounds concurrent price
// lookups; zero uses GOMAXPROCS.
func NewAssembler(resolver PriceResolver, logger zerolog.Logger, maxGoroutines int) *Assembler {
	return &Assembler{
		resolver:      resolver,
		logger:        logger.With().Str("component", "assembler").Logger(),
		maxGoroutines: maxGoroutines,
	}
}

// Assemble plans the description against the book and resolves every leg
// price concurrently. Insufficient input is returned as an error wrapping
// ErrInsufficientInput and yields no legs.
func (a *Assembler) Assemble(ctx context.Context, book *models.ContractBook, desc Description) (Assembly, error) {
	plans, err := desc.Plan(book)
	if err != nil {
		return Assembly{}, err
	}

	binary := a.resolver.Spreads().Binary
	mapper := iter.Mapper[LegPlan, models.PricedLeg]{MaxGoroutines: a.maxGoroutines}
	priced := mapper.Map(plans, func(p *LegPlan) models.PricedLeg {
		out := models.PricedLeg{Contract: p.Contract, Leg: p.Leg}
		switch {
		case p.ManualInvalid:
			out.Source = models.SourceNone
		case p.Manual != nil:
			v := *p.Manual
			out.Premium, out.Source = &v, models.SourceManual
		default:
			req := p.Request
			if p.BinarySpread {
				req.ForcedSpread = pricing.Spread(binary)
			}
			out.Premium, out.Source = a.resolver.ResolveWithFallback(ctx, req, p.Contract)
		}
		return out
	})

	a.logger.Debug().
		Str("strategy", desc.Name()).
		Int("legs", len(priced)).
		Msg("Strategy assembled")

	return Assembly{Description: desc.Name(), Priced: priced}, nil
}
