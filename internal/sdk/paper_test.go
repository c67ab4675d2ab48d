package sdk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trader/internal/config"
	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

var paperNow = time.Now().UTC()

func newPaper() *PaperClient {
	return NewPaperClient(PaperClientConfig{
		CurrencyPair: "WETH/USDC",
		Paper: config.PaperConfig{
			Spot:         1900,
			Strikes:      []float64{2000, 1800, 1900},
			ExpiryDays:   4,
			TimeValue:    40,
			FeeRate:      0.001,
			LockMultiple: 1,
		},
		Now: func() time.Time { return paperNow },
	})
}

func TestPaperClientBook(t *testing.T) {
	p := newPaper()
	book, err := LoadBook(context.Background(), p, "WETH/USDC", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, paperNow.Truncate(24*time.Hour).AddDate(0, 0, 4).Format(models.DateLayout), book.Expiry.Format(models.DateLayout))
	strikes := book.Strikes(models.KindCall)
	require.Len(t, strikes, 3)
	assert.True(t, strikes[0].Equal(decimal.NewFromInt(1800)))

	spot, ok := book.Forward(models.TenorNextAuction)
	require.True(t, ok)
	assert.Equal(t, models.KindSpot, spot.Kind)
	fwd, ok := book.Forward(models.TenorCurrent)
	require.True(t, ok)
	assert.Equal(t, models.KindForward, fwd.Kind)

	atm, ok := book.Lookup(models.KindCall, decimal.NewFromInt(1900))
	require.True(t, ok)
	assert.True(t, atm.ReferencePrice.Equal(dec("40")), "at the money call is pure time value, got %s", atm.ReferencePrice)

	itm, _ := book.Lookup(models.KindCall, decimal.NewFromInt(1800))
	assert.True(t, itm.ReferencePrice.GreaterThan(dec("100")))

	bc, _ := book.Lookup(models.KindBinaryCall, decimal.NewFromInt(1900))
	bp, _ := book.Lookup(models.KindBinaryPut, decimal.NewFromInt(1900))
	assert.True(t, bc.ReferencePrice.Add(bp.ReferencePrice).Equal(dec("1")))

	_, err = p.Contracts(context.Background(), "WBTC/USDC")
	assert.ErrorIs(t, err, apperrors.ErrContractNotFound)
}

func TestPaperClientBackend(t *testing.T) {
	p := newPaper()
	ctx := context.Background()

	mid, err := p.MidPrice(ctx, models.KindPut, p.Expiry(), decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.True(t, mid.GreaterThan(dec("100")))

	_, err = p.MidPrice(ctx, models.KindPut, p.Expiry(), decimal.NewFromInt(2050))
	assert.ErrorIs(t, err, apperrors.ErrNoPrice)

	fwd, err := p.ForwardPrice(ctx, paperNow)
	require.NoError(t, err)
	assert.True(t, fwd.Equal(dec("1900")))
}

func TestPaperClientEstimates(t *testing.T) {
	p := newPaper()
	ctx := context.Background()
	book, err := LoadBook(ctx, p, "", time.Time{})
	require.NoError(t, err)

	call, _ := book.Lookup(models.KindCall, decimal.NewFromInt(1800))
	put, _ := book.Lookup(models.KindPut, decimal.NewFromInt(1800))
	p1, p2 := dec("150"), dec("20")
	draft := models.OrderDraft{
		ClientOrderID: "c-1",
		Legs: []models.Leg{
			{ContractID: call.ID, Quantity: dec("1"), Side: models.SideBuy},
			{ContractID: put.ID, Quantity: dec("2"), Side: models.SideSell},
		},
		ReferencePrices: []*decimal.Decimal{&p1, &p2},
		TotalNetPrice:   dec("110"),
		Complete:        true,
	}

	lock, err := p.EstimateOrderLock(ctx, draft)
	require.NoError(t, err)
	// short 2 puts at 1800 plus the 110 debit
	assert.True(t, lock.Equal(dec("3710")), "got %s", lock)

	fees, err := p.EstimateOrderFees(ctx, draft)
	require.NoError(t, err)
	// (150 + 40) * 0.001
	assert.True(t, fees.NumberValue.Equal(dec("0.19")), "got %s", fees.NumberValue)

	draft.Legs = append(draft.Legs, models.Leg{ContractID: 99999, Quantity: dec("1"), Side: models.SideSell})
	_, err = p.EstimateOrderLock(ctx, draft)
	assert.ErrorIs(t, err, apperrors.ErrContractNotFound)
}

func TestPaperClientNewOrder(t *testing.T) {
	p := newPaper()
	ctx := context.Background()

	var updates []models.OrderUpdate
	p.OnUpdate(func(u models.OrderUpdate) { updates = append(updates, u) })

	draft := models.OrderDraft{
		ClientOrderID: "c-1",
		Legs:          []models.Leg{{ContractID: 100, Quantity: dec("1"), Side: models.SideBuy}},
		TotalNetPrice: dec("120"),
	}
	_, err := p.NewOrder(ctx, draft, "Call")
	assert.ErrorIs(t, err, apperrors.ErrDraftIncomplete)

	draft.Complete = true
	receipt, err := p.NewOrder(ctx, draft, "Call")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOpen, receipt.Status)
	assert.Contains(t, receipt.OrderID, "PAPER_")

	_, err = p.NewOrder(ctx, draft, "Call")
	assert.ErrorIs(t, err, apperrors.ErrOrderRejected, "client order ids are single use")

	require.NoError(t, p.CancelOrder(ctx, "c-1"))
	assert.Error(t, p.CancelOrder(ctx, "c-1"))

	orders := p.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)

	require.Len(t, updates, 2)
	assert.Equal(t, models.OrderStatusOpen, updates[0].Status)
	assert.Equal(t, models.OrderStatusCancelled, updates[1].Status)
}
