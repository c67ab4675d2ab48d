package strategy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

func TestAddLegDefaults(t *testing.T) {
	book := testBook()
	s := New("")

	s, err := s.AddLeg(book, dec("1930"))
	require.NoError(t, err)
	require.Len(t, s.Legs, 1)
	assert.Equal(t, LegSpec{Kind: models.KindCall, Side: models.SideBuy, Size: "1", Strike: "1900", Linked: true}, s.Legs[0])

	s = s.SetSharedSize("3")
	s, err = s.AddLeg(book, dec("1930"))
	require.NoError(t, err)
	assert.Equal(t, "3", s.Legs[1].Size, "new leg takes the largest linked size")
}

func TestAddLegMaxLegs(t *testing.T) {
	book := testBook()
	s := New("")
	var err error
	for i := 0; i < DefaultMaxLegs; i++ {
		s, err = s.AddLeg(book, dec("1900"))
		require.NoError(t, err)
	}
	assert.False(t, s.CanAddLeg())

	_, err = s.AddLeg(book, dec("1900"))
	assert.ErrorIs(t, err, apperrors.ErrMaxLegs)
}

func TestStrategyEditsDoNotMutate(t *testing.T) {
	book := testBook()
	orig := LookupOrFail(t, "call-spread").Instantiate(book, dec("1900"))

	inverted := orig.InvertSides()
	assert.Equal(t, models.SideBuy, orig.Legs[0].Side)
	assert.Equal(t, models.SideSell, inverted.Legs[0].Side)
	assert.Equal(t, models.SideBuy, inverted.Legs[1].Side)

	removed, err := orig.RemoveLeg(0)
	require.NoError(t, err)
	assert.Len(t, removed.Legs, 1)
	assert.Len(t, orig.Legs, 2)

	_, err = orig.RemoveLeg(5)
	assert.Error(t, err)

	assert.Empty(t, orig.Clear().Legs)
}

func TestLinkedSizes(t *testing.T) {
	book := testBook()
	s := LookupOrFail(t, "call-butterfly").Instantiate(book, dec("1900"))
	require.Equal(t, []string{"1", "2", "1"}, sizes(s))

	s = s.SetSharedSize("4")
	assert.Equal(t, []string{"4", "2", "4"}, sizes(s), "unlinked leg keeps its size")

	s, err := s.SetLinked(1, true)
	require.NoError(t, err)
	assert.Equal(t, "4", s.Legs[1].Size)

	leg := s.Legs[0]
	leg.Size = "7"
	s, err = s.UpdateLeg(0, leg)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "7", "7"}, sizes(s))

	s, err = s.SetLinked(2, false)
	require.NoError(t, err)
	s = s.SetSharedSize("1")
	assert.Equal(t, []string{"1", "1", "7"}, sizes(s))
}

func TestTemplateStrikeOffsets(t *testing.T) {
	book := testBook()

	cs := LookupOrFail(t, "call-spread").Instantiate(book, dec("1920"))
	assert.Equal(t, []string{"2000", "2100"}, strikes(cs))

	ic := LookupOrFail(t, "iron-condor").Instantiate(book, dec("1900"))
	assert.Equal(t, []string{"1700", "1800", "2000", "2100"}, strikes(ic))

	// offsets clamp at the ends of the strike list
	dip := LookupOrFail(t, "down-in-put").Instantiate(book, dec("1650"))
	assert.Equal(t, []string{"1600", "1600"}, strikes(dip))

	bonus := LookupOrFail(t, "bonus").Instantiate(book, dec("1900"))
	require.Len(t, bonus.Legs, 4)
	assert.Equal(t, NoStrike, bonus.Legs[3].Strike)
	assert.Equal(t, models.TenorNextAuction, bonus.Legs[3].Tenor)
}

func TestTemplatesCatalogue(t *testing.T) {
	assert.Len(t, Templates(Linear), 12)
	assert.Len(t, Templates(Structured), 8)
	assert.Len(t, TemplateKeys(), 20)

	for _, tpl := range Templates("") {
		assert.LessOrEqual(t, len(tpl.Legs), DefaultMaxLegs, tpl.Key)
	}
}

func TestPlanInsufficientInput(t *testing.T) {
	book := testBook()
	valid := LegSpec{Kind: models.KindCall, Side: models.SideBuy, Size: "1", Strike: "1900"}

	tests := []struct {
		name string
		leg  LegSpec
	}{
		{"no size", LegSpec{Kind: models.KindCall, Side: models.SideBuy, Strike: "1900"}},
		{"text size", LegSpec{Kind: models.KindCall, Side: models.SideBuy, Size: "one", Strike: "1900"}},
		{"zero size", LegSpec{Kind: models.KindCall, Side: models.SideBuy, Size: "0", Strike: "1900"}},
		{"no strike", LegSpec{Kind: models.KindPut, Side: models.SideBuy, Size: "1"}},
		{"placeholder strike on option", LegSpec{Kind: models.KindPut, Side: models.SideBuy, Size: "1", Strike: NoStrike}},
		{"unlisted strike", LegSpec{Kind: models.KindPut, Side: models.SideBuy, Size: "1", Strike: "1950"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Strategy{Legs: []LegSpec{valid, tt.leg}}
			plans, err := s.Plan(book)
			assert.Nil(t, plans)
			assert.ErrorIs(t, err, apperrors.ErrInsufficientInput)
		})
	}

	_, err := New("").Plan(book)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientInput)
}

func TestPlanForwardLegs(t *testing.T) {
	book := testBook()
	s := Strategy{Legs: []LegSpec{
		{Kind: models.KindForward, Tenor: models.TenorNextAuction, Side: models.SideBuy, Size: "1", Strike: NoStrike},
		{Kind: models.KindForward, Tenor: models.TenorCurrent, Side: models.SideSell, Size: "2", Strike: NoStrike},
	}}

	plans, err := s.Plan(book)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, int64(901), plans[0].Leg.ContractID, "next auction trades the spot contract")
	assert.Equal(t, int64(900), plans[1].Leg.ContractID)
	assert.Nil(t, plans[0].Request.Strike)
	assert.Equal(t, models.TenorNextAuction, plans[0].Request.Tenor)
}

func TestAssemblePreservesOrder(t *testing.T) {
	book := testBook()
	res := &stubResolver{prices: map[int64]decimal.Decimal{
		118: dec("50"), // Call 1800
		218: dec("30"), // Put 1800
	}}
	a := NewAssembler(res, zerolog.Nop(), 0)

	s := Strategy{Legs: []LegSpec{
		{Kind: models.KindCall, Side: models.SideBuy, Size: "1", Strike: "1800"},
		{Kind: models.KindPut, Side: models.SideSell, Size: "1", Strike: "1800"},
	}}
	asm, err := a.Assemble(context.Background(), book, s)
	require.NoError(t, err)

	legs := asm.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, models.Leg{ContractID: 118, Quantity: dec("1"), Side: models.SideBuy}, legs[0])
	assert.Equal(t, models.Leg{ContractID: 218, Quantity: dec("1"), Side: models.SideSell}, legs[1])

	prices := asm.ReferencePrices()
	assert.True(t, prices[0].Equal(dec("50")))
	assert.True(t, prices[1].Equal(dec("30")))
	assert.True(t, asm.Complete())
}

func TestAssembleManualAndMissingPrices(t *testing.T) {
	book := testBook()
	res := &stubResolver{prices: map[int64]decimal.Decimal{}}
	a := NewAssembler(res, zerolog.Nop(), 2)

	s := Strategy{Legs: []LegSpec{
		{Kind: models.KindCall, Side: models.SideBuy, Size: "1", Strike: "1800", UnitPrice: "42.5"},
		{Kind: models.KindCall, Side: models.SideSell, Size: "1", Strike: "1900", UnitPrice: "abc"},
		{Kind: models.KindCall, Side: models.SideSell, Size: "1", Strike: "2000"},
	}}
	asm, err := a.Assemble(context.Background(), book, s)
	require.NoError(t, err)

	require.NotNil(t, asm.Priced[0].Premium)
	assert.True(t, asm.Priced[0].Premium.Equal(dec("42.5")))
	assert.Equal(t, models.SourceManual, asm.Priced[0].Source)
	assert.Nil(t, asm.Priced[1].Premium)
	assert.Nil(t, asm.Priced[2].Premium)
	assert.False(t, asm.Complete())

	_, requested := res.requestFor(118)
	assert.False(t, requested, "manual price skips the backend")
	_, requested = res.requestFor(119)
	assert.False(t, requested, "invalid manual price skips the backend")
}

func LookupOrFail(t *testing.T, key string) Template {
	t.Helper()
	tpl, ok := LookupTemplate(key)
	require.True(t, ok, key)
	return tpl
}

func sizes(s Strategy) []string {
	out := make([]string, len(s.Legs))
	for i, l := range s.Legs {
		out[i] = l.Size
	}
	return out
}

func strikes(s Strategy) []string {
	out := make([]string, len(s.Legs))
	for i, l := range s.Legs {
		out[i] = l.Strike
	}
	return out
}
