package pricing

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
)

var kindIdxGen = gen.IntRange(0, len(models.AllKinds)-1)

// Property: when neither side is floored, the ask minus the bid equals the
// spread that was applied.
func TestProperty_BidAskWidthEqualsSpread(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("BUY - SELL == spread when unclamped", prop.ForAll(
		func(spreadCents, headroomCents int64, kindIdx int) bool {
			s := decimal.New(spreadCents, -2)
			// mid sits strictly above half the spread so the bid stays positive
			mid := s.Div(two).Add(decimal.New(headroomCents, -2))
			kind := models.AllKinds[kindIdx]

			buy := BidAsk(mid, kind, models.SideBuy, &s)
			sell := BidAsk(mid, kind, models.SideSell, &s)
			return buy.Sub(sell).Equal(s)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(1, 10_000_000),
		kindIdxGen,
	))

	properties.Property("default spreads are symmetric around mid", prop.ForAll(
		func(midCents int64, kindIdx int) bool {
			kind := models.AllKinds[kindIdx]
			mid := decimal.New(midCents, -2)
			spread := DefaultSpreadModel().Spread(kind)

			buy := BidAsk(mid, kind, models.SideBuy, nil)
			sell := BidAsk(mid, kind, models.SideSell, nil)
			return buy.Sub(mid).Equal(mid.Sub(sell)) && buy.Sub(sell).Equal(spread)
		},
		gen.Int64Range(1000, 10_000_000),
		kindIdxGen,
	))

	properties.TestingRun(t)
}

// Property: a bid that would be zero or negative is floored at the minimum
// price, and no quote is ever below the floor.
func TestProperty_BidAskFloor(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("SELL == 0.01 when mid - spread/2 <= 0", prop.ForAll(
		func(spreadCents, belowCents int64, kindIdx int) bool {
			s := decimal.New(spreadCents, -2)
			mid := s.Div(two).Sub(decimal.New(belowCents, -2))
			sell := BidAsk(mid, models.AllKinds[kindIdx], models.SideSell, &s)
			return sell.Equal(MinimumPrice)
		},
		gen.Int64Range(1, 100_000),
		gen.Int64Range(0, 100_000),
		kindIdxGen,
	))

	properties.Property("quotes never fall below the floor", prop.ForAll(
		func(midCents int64, kindIdx int, buy bool) bool {
			side := models.SideSell
			if buy {
				side = models.SideBuy
			}
			p := BidAsk(decimal.New(midCents, -2), models.AllKinds[kindIdx], side, nil)
			return p.GreaterThanOrEqual(MinimumPrice)
		},
		gen.Int64Range(-1_000_000, 1_000_000),
		kindIdxGen,
		gen.Bool(),
	))

	properties.TestingRun(t)
}
