package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/logging"
	"auction-trader/internal/models"
)

// Instrument identifies what to price.
type Instrument struct {
	Kind   models.InstrumentKind
	Tenor  models.ForwardTenor // forwards only
	Expiry time.Time
	Strike *decimal.Decimal // nil when the instrument has no strike
}

// PriceRequest is a single reference price lookup. A nil Side returns the
// raw mid-price.
type PriceRequest struct {
	Instrument
	Side         *models.Side
	ForcedSpread *decimal.Decimal
}

// Resolver resolves leg prices against the pricing backend.
type Resolver struct {
	backend Backend
	spreads SpreadModel
	now     func() time.Time
	logger  zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the clock used for next-auction forward dates.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithSpreadModel overrides the default spreads.
func WithSpreadModel(m SpreadModel) ResolverOption {
	return func(r *Resolver) { r.spreads = m }
}

// NewResolver creates a Resolver.
func NewResolver(backend Backend, logger zerolog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		backend: backend,
		spreads: DefaultSpreadModel(),
		now:     time.Now,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spreads returns the resolver's spread model.
func (r *Resolver) Spreads() SpreadModel {
	return r.spreads
}

// PricingDate is the date a price is requested for. The next-auction
// forward is priced as of today, everything else at expiry.
func (r *Resolver) PricingDate(inst Instrument) time.Time {
	if inst.Kind.IsForward() && inst.Tenor == models.TenorNextAuction {
		return r.now().UTC()
	}
	return inst.Expiry
}

// Resolve fetches a mid-price and applies the spread when a side is given.
// Failures are returned to the caller, who decides on a fallback.
func (r *Resolver) Resolve(ctx context.Context, req PriceRequest) (decimal.Decimal, error) {
	var (
		mid decimal.Decimal
		err error
	)
	date := r.PricingDate(req.Instrument)

	if req.Kind.IsForward() {
		mid, err = r.backend.ForwardPrice(ctx, date)
	} else {
		if req.Strike == nil {
			return decimal.Zero, apperrors.ErrNoStrike
		}
		mid, err = r.backend.MidPrice(ctx, req.Kind, date, *req.Strike)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !mid.IsPositive() {
		return decimal.Zero, apperrors.ErrNoPrice
	}

	return r.adjust(mid, req), nil
}

// ResolveWithFallback resolves a price and, when the backend fails,
// substitutes the contract's last known reference price run through the
// same spread. The premium is nil only when neither source has a price.
func (r *Resolver) ResolveWithFallback(ctx context.Context, req PriceRequest, contract models.Contract) (*decimal.Decimal, models.PriceSource) {
	price, err := r.Resolve(ctx, req)
	if err == nil {
		r.logQuote(req, price, models.SourceLive)
		return &price, models.SourceLive
	}

	log := r.logger.Warn().Err(err).Int64("contract_id", contract.ID).Str("kind", string(req.Kind))
	if !contract.ReferencePrice.IsPositive() {
		log.Msg("Price unavailable and contract has no reference price")
		return nil, models.SourceNone
	}
	log.Str("reference_price", contract.ReferencePrice.String()).Msg("Price fetch failed, using contract reference price")

	price = r.adjust(contract.ReferencePrice, req)
	r.logQuote(req, price, models.SourceFallback)
	return &price, models.SourceFallback
}

// Quote is a two-sided display price.
type Quote struct {
	Instrument
	Mid decimal.Decimal
	Bid decimal.Decimal // SELL side
	Ask decimal.Decimal // BUY side
}

// Quote fetches an instrument's mid-price and applies the spread to both
// sides. It has no fallback: a failed fetch is returned.
func (r *Resolver) Quote(ctx context.Context, inst Instrument, forcedSpread *decimal.Decimal) (Quote, error) {
	mid, err := r.Resolve(ctx, PriceRequest{Instrument: inst})
	if err != nil {
		return Quote{}, err
	}
	return r.quote(inst, mid, forcedSpread), nil
}

// ChainQuote is one contract's quote from a batch. Err is set when the
// backend returned no price for the contract.
type ChainQuote struct {
	Quote
	ContractID int64
	Err        error
}

// QuoteChain prices contracts in a single price list round trip. Results
// follow the order of contracts whatever order the backend answers in.
func (r *Resolver) QuoteChain(ctx context.Context, contracts []models.Contract, forcedSpread *decimal.Decimal) ([]ChainQuote, error) {
	entries := make([]PriceListEntry, len(contracts))
	for i, c := range contracts {
		entries[i] = EntryFor(c)
	}
	priced, err := r.backend.PriceList(ctx, entries)
	if err != nil {
		return nil, err
	}
	mids := make(map[int64]*decimal.Decimal, len(priced))
	for _, e := range priced {
		mids[e.ContractID] = e.Price
	}

	out := make([]ChainQuote, len(contracts))
	for i, c := range contracts {
		inst := Instrument{Kind: c.Kind, Expiry: c.Economics.Expiry, Strike: c.Economics.Strike}
		out[i] = ChainQuote{Quote: Quote{Instrument: inst}, ContractID: c.ID}
		mid := mids[c.ID]
		if mid == nil || !mid.IsPositive() {
			out[i].Err = apperrors.ErrNoPrice
			continue
		}
		out[i].Quote = r.quote(inst, *mid, forcedSpread)
	}
	r.logger.Debug().Int("contracts", len(contracts)).Msg("Chain quoted")
	return out, nil
}

func (r *Resolver) quote(inst Instrument, mid decimal.Decimal, forcedSpread *decimal.Decimal) Quote {
	return Quote{
		Instrument: inst,
		Mid:        mid,
		Bid:        r.adjust(mid, PriceRequest{Instrument: inst, Side: SidePtr(models.SideSell), ForcedSpread: forcedSpread}),
		Ask:        r.adjust(mid, PriceRequest{Instrument: inst, Side: SidePtr(models.SideBuy), ForcedSpread: forcedSpread}),
	}
}

func (r *Resolver) adjust(mid decimal.Decimal, req PriceRequest) decimal.Decimal {
	if req.Side == nil {
		return mid
	}
	kind := req.Kind
	if kind.IsForward() {
		kind = models.KindForward
	}
	return r.spreads.BidAsk(mid, kind, *req.Side, req.ForcedSpread)
}

func (r *Resolver) logQuote(req PriceRequest, price decimal.Decimal, source models.PriceSource) {
	strike, side := "-", "MID"
	if req.Strike != nil {
		strike = req.Strike.String()
	}
	if req.Side != nil {
		side = string(*req.Side)
	}
	logging.LogQuote(r.logger, string(req.Kind), strike, side, price.String(), string(source))
}

// SidePtr returns a pointer to s.
func SidePtr(s models.Side) *models.Side {
	return &s
}
