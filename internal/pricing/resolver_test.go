package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

type fakeBackend struct {
	mu       sync.Mutex
	mids     map[string]decimal.Decimal // kind|strike
	forwards map[string]decimal.Decimal // date
	err      error
	calls    []string
}

func (f *fakeBackend) MidPrice(_ context.Context, kind models.InstrumentKind, date time.Time, strike decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "price "+string(kind)+" "+date.Format(models.DateLayout)+" "+strike.String())
	if f.err != nil {
		return decimal.Zero, f.err
	}
	p, ok := f.mids[string(kind)+"|"+strike.String()]
	if !ok {
		return decimal.Zero, apperrors.ErrNoPrice
	}
	return p, nil
}

func (f *fakeBackend) ForwardPrice(_ context.Context, date time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := date.Format(models.DateLayout)
	f.calls = append(f.calls, "forward "+key)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	p, ok := f.forwards[key]
	if !ok {
		return decimal.Zero, apperrors.ErrNoPrice
	}
	return p, nil
}

func (f *fakeBackend) PriceList(_ context.Context, entries []PriceListEntry) ([]PriceListEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "price_list")
	if f.err != nil {
		return nil, f.err
	}
	// answered in reverse to check results are matched by contract id
	out := make([]PriceListEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if p, ok := f.mids[e.Payoff+"|"+e.Strike.String()]; ok {
			e.Price = &p
		}
		out = append(out, e)
	}
	return out, nil
}

var (
	today  = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	expiry = time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC)
)

func newTestResolver(b Backend) *Resolver {
	return NewResolver(b, zerolog.Nop(), WithClock(func() time.Time { return today }))
}

func strikePtr(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestResolveOption(t *testing.T) {
	b := &fakeBackend{mids: map[string]decimal.Decimal{"Call|1800": d("120")}}
	r := newTestResolver(b)
	inst := Instrument{Kind: models.KindCall, Expiry: expiry, Strike: strikePtr("1800")}

	mid, err := r.Resolve(context.Background(), PriceRequest{Instrument: inst})
	require.NoError(t, err)
	assert.True(t, mid.Equal(d("120")), "no side returns the raw mid")

	ask, err := r.Resolve(context.Background(), PriceRequest{Instrument: inst, Side: SidePtr(models.SideBuy)})
	require.NoError(t, err)
	assert.True(t, ask.Equal(d("122.625")))

	assert.Equal(t, "price Call 2024-03-08 1800", b.calls[0])
}

func TestResolveForwardDates(t *testing.T) {
	b := &fakeBackend{forwards: map[string]decimal.Decimal{
		"2024-03-01": d("1901"),
		"2024-03-08": d("1905"),
	}}
	r := newTestResolver(b)

	next, err := r.Resolve(context.Background(), PriceRequest{Instrument: Instrument{
		Kind: models.KindForward, Tenor: models.TenorNextAuction, Expiry: expiry,
	}})
	require.NoError(t, err)
	assert.True(t, next.Equal(d("1901")), "next auction forward is priced for today")

	cur, err := r.Resolve(context.Background(), PriceRequest{
		Instrument: Instrument{Kind: models.KindForward, Tenor: models.TenorCurrent, Expiry: expiry},
		Side:       SidePtr(models.SideSell),
	})
	require.NoError(t, err)
	assert.True(t, cur.Equal(d("1904.475")), "current forward is priced at expiry with forward spread")
}

func TestResolveWithoutStrike(t *testing.T) {
	b := &fakeBackend{}
	r := newTestResolver(b)

	_, err := r.Resolve(context.Background(), PriceRequest{Instrument: Instrument{Kind: models.KindPut, Expiry: expiry}})
	assert.ErrorIs(t, err, apperrors.ErrNoStrike)
	assert.Empty(t, b.calls, "no backend call without a strike")
}

func TestResolveWithFallback(t *testing.T) {
	b := &fakeBackend{err: apperrors.ErrConnectionFailed}
	r := newTestResolver(b)
	strike := strikePtr("2000")
	contract := models.Contract{
		ID:             7,
		Kind:           models.KindBinaryCall,
		Economics:      models.Economics{Expiry: expiry, Strike: strike},
		ReferencePrice: d("0.3"),
	}
	req := PriceRequest{
		Instrument:   Instrument{Kind: models.KindBinaryCall, Expiry: expiry, Strike: strike},
		Side:         SidePtr(models.SideSell),
		ForcedSpread: Spread(BinarySpread),
	}

	price, source := r.ResolveWithFallback(context.Background(), req, contract)
	require.NotNil(t, price)
	assert.Equal(t, models.SourceFallback, source)
	assert.True(t, price.Equal(d("0.275")))

	contract.ReferencePrice = decimal.Zero
	price, source = r.ResolveWithFallback(context.Background(), req, contract)
	assert.Nil(t, price)
	assert.Equal(t, models.SourceNone, source)
}

func TestResolveWithFallbackLive(t *testing.T) {
	b := &fakeBackend{mids: map[string]decimal.Decimal{"Put|1700": d("35")}}
	r := newTestResolver(b)
	strike := strikePtr("1700")

	price, source := r.ResolveWithFallback(context.Background(), PriceRequest{
		Instrument: Instrument{Kind: models.KindPut, Expiry: expiry, Strike: strike},
		Side:       SidePtr(models.SideSell),
	}, models.Contract{ReferencePrice: d("99")})

	require.NotNil(t, price)
	assert.Equal(t, models.SourceLive, source)
	assert.True(t, price.Equal(d("32.375")))
}

func TestQuote(t *testing.T) {
	b := &fakeBackend{mids: map[string]decimal.Decimal{"BinaryCall|2000": d("0.42")}}
	r := newTestResolver(b)
	inst := Instrument{Kind: models.KindBinaryCall, Expiry: expiry, Strike: strikePtr("2000")}

	q, err := r.Quote(context.Background(), inst, nil)
	require.NoError(t, err)
	assert.True(t, q.Mid.Equal(d("0.42")))
	assert.True(t, q.Bid.Equal(d("0.395")), q.Bid.String())
	assert.True(t, q.Ask.Equal(d("0.445")), q.Ask.String())

	_, err = r.Quote(context.Background(), Instrument{Kind: models.KindCall, Expiry: expiry, Strike: strikePtr("1")}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoPrice)
}

func TestQuoteChain(t *testing.T) {
	b := &fakeBackend{mids: map[string]decimal.Decimal{
		"BinaryCall|1900": d("0.61"),
		"BinaryCall|2000": d("0.42"),
	}}
	r := newTestResolver(b)
	chain := []models.Contract{
		{ID: 11, Kind: models.KindBinaryCall, Economics: models.Economics{Expiry: expiry, Strike: strikePtr("1900")}},
		{ID: 12, Kind: models.KindBinaryCall, Economics: models.Economics{Expiry: expiry, Strike: strikePtr("2000")}},
		{ID: 13, Kind: models.KindBinaryCall, Economics: models.Economics{Expiry: expiry, Strike: strikePtr("2100")}},
	}

	quotes, err := r.QuoteChain(context.Background(), chain, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, []string{"price_list"}, b.calls, "one round trip for the whole chain")

	assert.Equal(t, int64(11), quotes[0].ContractID)
	require.NoError(t, quotes[0].Err)
	assert.True(t, quotes[0].Mid.Equal(d("0.61")))

	assert.Equal(t, int64(12), quotes[1].ContractID)
	assert.True(t, quotes[1].Bid.Equal(d("0.395")), quotes[1].Bid.String())
	assert.True(t, quotes[1].Ask.Equal(d("0.445")), quotes[1].Ask.String())

	assert.Equal(t, int64(13), quotes[2].ContractID)
	assert.ErrorIs(t, quotes[2].Err, apperrors.ErrNoPrice)
	assert.True(t, quotes[2].Strike.Equal(d("2100")))

	forced := Spread(d("0.2"))
	quotes, err = r.QuoteChain(context.Background(), chain[1:2], forced)
	require.NoError(t, err)
	assert.True(t, quotes[0].Bid.Equal(d("0.32")), quotes[0].Bid.String())

	b.err = apperrors.ErrConnectionFailed
	_, err = r.QuoteChain(context.Background(), chain, nil)
	assert.ErrorIs(t, err, apperrors.ErrConnectionFailed)
}
