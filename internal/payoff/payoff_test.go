package payoff

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestIntrinsic(t *testing.T) {
	k := dec("1800")
	contract := func(kind models.InstrumentKind) models.Contract {
		return models.Contract{Kind: kind, Economics: models.Economics{Strike: &k}}
	}

	tests := []struct {
		kind models.InstrumentKind
		spot string
		want string
	}{
		{models.KindCall, "1900", "100"},
		{models.KindCall, "1700", "0"},
		{models.KindPut, "1700", "100"},
		{models.KindPut, "1900", "0"},
		{models.KindBinaryCall, "1800", "1"},
		{models.KindBinaryCall, "1799.99", "0"},
		{models.KindBinaryPut, "1800", "1"},
		{models.KindBinaryPut, "1800.01", "0"},
	}
	for _, tt := range tests {
		got := Intrinsic(contract(tt.kind), dec(tt.spot))
		assert.True(t, got.Equal(dec(tt.want)), "%s at %s: got %s", tt.kind, tt.spot, got)
	}

	fwd := models.Contract{Kind: models.KindForward}
	assert.True(t, Intrinsic(fwd, dec("1500")).Equal(dec("1500")), "forward without strike is linear in spot")
}

func TestEstimateSamplesStrikes(t *testing.T) {
	legs := []models.PricedLeg{
		pricedLeg(models.KindCall, 1800, 5000, 1, models.SideBuy),
		pricedLeg(models.KindPut, 1850, 3000, 1, models.SideSell),
	}
	curve, err := Estimate(legs, Options{Points: 7})
	require.NoError(t, err)

	var spots []string
	for _, p := range curve {
		spots = append(spots, p.Spot.String())
		require.Len(t, p.Legs, 2)
		assert.True(t, p.Legs[0].Add(p.Legs[1]).Equal(p.Total))
	}
	assert.Contains(t, spots, "1800")
	assert.Contains(t, spots, "1850")
	for i := 1; i < len(curve); i++ {
		assert.True(t, curve[i].Spot.GreaterThan(curve[i-1].Spot))
	}
	assert.False(t, curve[0].Spot.IsNegative())
}

func TestEstimateEndToEndPair(t *testing.T) {
	// long 1800 call at 50, short 1800 put at 30: a synthetic long forward
	legs := []models.PricedLeg{
		pricedLeg(models.KindCall, 1800, 5000, 1, models.SideBuy),
		pricedLeg(models.KindPut, 1800, 3000, 1, models.SideSell),
	}
	curve, err := Estimate(legs, DefaultOptions())
	require.NoError(t, err)

	for _, p := range curve {
		want := p.Spot.Sub(dec("1800")).Sub(dec("20"))
		assert.True(t, p.Total.Equal(want), "spot %s: got %s want %s", p.Spot, p.Total, want)
	}

	sum := Summarize(curve)
	require.Len(t, sum.Breakevens, 1)
	assert.True(t, sum.Breakevens[0].Equal(dec("1820")), "got %s", sum.Breakevens[0])
	assert.True(t, sum.UpsideUnbounded)
}

func TestEstimateBinaryQuantity(t *testing.T) {
	legs := []models.PricedLeg{pricedLeg(models.KindBinaryCall, 2000, 25, 200, models.SideBuy)}
	curve, err := Estimate(legs, DefaultOptions())
	require.NoError(t, err)

	for _, p := range curve {
		if p.Spot.GreaterThanOrEqual(dec("2000")) {
			assert.True(t, p.Total.Equal(dec("150")), "200 x (1 - 0.25)")
		} else {
			assert.True(t, p.Total.Equal(dec("-50")))
		}
	}

	sum := Summarize(curve)
	assert.True(t, sum.MaxProfit.Equal(dec("150")))
	assert.True(t, sum.MaxLoss.Equal(dec("-50")))
	assert.False(t, sum.UpsideUnbounded)
}

func TestEstimateUnpricedLeg(t *testing.T) {
	legs := []models.PricedLeg{
		pricedLeg(models.KindCall, 1800, 5000, 1, models.SideBuy),
		{Contract: models.Contract{ID: 2, Kind: models.KindPut}, Leg: models.Leg{Quantity: dec("1"), Side: models.SideBuy}},
	}
	_, err := Estimate(legs, DefaultOptions())
	assert.ErrorIs(t, err, apperrors.ErrUnpricedLeg)

	curve, err := Estimate(nil, DefaultOptions())
	assert.NoError(t, err)
	assert.Empty(t, curve)
}

func TestSpotRangeForwardOnly(t *testing.T) {
	legs := []models.PricedLeg{pricedLeg(models.KindForward, 0, 190000, 1, models.SideBuy)}
	spots := SpotRange(legs, Options{Points: 11})

	require.Len(t, spots, 11)
	assert.True(t, spots[0].LessThan(dec("1900")))
	assert.True(t, spots[len(spots)-1].GreaterThan(dec("1900")))
}
