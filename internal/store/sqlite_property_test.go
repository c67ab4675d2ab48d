package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// Property: Decimal prices and leg quantities survive the journal exactly,
// with legs kept in submission order.
func TestProperty_OrderJournalKeepsDecimalsExact(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	var seq int
	properties.Property("journal round trip preserves legs and amounts", prop.ForAll(
		func(netCents int64, lockCents int64, legCount int, qtyMillis int64) bool {
			ctx := context.Background()
			seq++

			legs := make([]models.Leg, legCount)
			for i := range legs {
				side := models.SideBuy
				if i%2 == 1 {
					side = models.SideSell
				}
				legs[i] = models.Leg{
					ContractID: int64(100 + i),
					Quantity:   decimal.New(qtyMillis+int64(i), -3),
					Side:       side,
				}
			}

			order := &models.SubmittedOrder{
				ClientOrderID: fmt.Sprintf("prop-%d", seq),
				OrderID:       fmt.Sprintf("ord-%d", seq),
				Description:   "Iron Condor",
				CurrencyPair:  "WETH/USDC",
				Expiry:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
				Legs:          legs,
				TotalNetPrice: decimal.New(netCents, -2),
				Lock:          decimal.New(lockCents, -2),
				Fees:          decimal.RequireFromString("0.0004"),
			}
			if err := store.SaveOrder(ctx, order); err != nil {
				t.Logf("save: %v", err)
				return false
			}

			got, err := store.GetOrder(ctx, order.ClientOrderID)
			if err != nil {
				t.Logf("get: %v", err)
				return false
			}

			if !got.TotalNetPrice.Equal(order.TotalNetPrice) || !got.Lock.Equal(order.Lock) || !got.Fees.Equal(order.Fees) {
				return false
			}
			if len(got.Legs) != len(legs) || !got.Expiry.Equal(order.Expiry) {
				return false
			}
			for i := range legs {
				if got.Legs[i].ContractID != legs[i].ContractID ||
					got.Legs[i].Side != legs[i].Side ||
					!got.Legs[i].Quantity.Equal(legs[i].Quantity) {
					return false
				}
			}
			return got.Status == models.OrderStatusOpen
		},
		gen.Int64Range(-500000, 500000),
		gen.Int64Range(0, 1000000),
		gen.IntRange(1, 5),
		gen.Int64Range(1, 100000),
	))

	properties.TestingRun(t)
}

func TestGetOrdersFilterAndOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	for i, pair := range []string{"WETH/USDC", "WBTC/USDC", "WETH/USDC"} {
		require.NoError(t, store.SaveOrder(ctx, &models.SubmittedOrder{
			ClientOrderID: fmt.Sprintf("c%d", i),
			Description:   "Straddle",
			CurrencyPair:  pair,
			Legs:          []models.Leg{{ContractID: 1, Quantity: decimal.NewFromInt(1), Side: models.SideBuy}},
			SubmittedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := store.GetOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c2", all[0].ClientOrderID, "newest first")

	weth, err := store.GetOrders(ctx, OrderFilter{CurrencyPair: "WETH/USDC", Limit: 1})
	require.NoError(t, err)
	require.Len(t, weth, 1)
	assert.Equal(t, "c2", weth[0].ClientOrderID)
	assert.Len(t, weth[0].Legs, 1)

	window, err := store.GetOrders(ctx, OrderFilter{StartDate: base.Add(30 * time.Minute), EndDate: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "c1", window[0].ClientOrderID)
}

func TestUpdateOrderStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveOrder(ctx, &models.SubmittedOrder{ClientOrderID: "abc", Description: "Bet", CurrencyPair: "WETH/USDC"}))
	require.NoError(t, store.UpdateOrderStatus(ctx, "abc", models.OrderStatusFilled))

	got, err := store.GetOrder(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, got.Status)

	filled, err := store.GetOrders(ctx, OrderFilter{Status: models.OrderStatusFilled})
	require.NoError(t, err)
	assert.Len(t, filled, 1)

	assert.ErrorIs(t, store.UpdateOrderStatus(ctx, "missing", models.OrderStatusFilled), ErrOrderNotFound)
	_, err = store.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSaveOrderRequiresClientOrderID(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveOrder(context.Background(), &models.SubmittedOrder{})
	assert.Error(t, err)
}

func TestSaveOrderReplacesLegs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := &models.SubmittedOrder{
		ClientOrderID: "r",
		Description:   "Spread",
		CurrencyPair:  "WETH/USDC",
		Legs: []models.Leg{
			{ContractID: 1, Quantity: decimal.NewFromInt(1), Side: models.SideBuy},
			{ContractID: 2, Quantity: decimal.NewFromInt(1), Side: models.SideSell},
		},
	}
	require.NoError(t, store.SaveOrder(ctx, order))

	order.Legs = order.Legs[:1]
	order.OrderID = "42"
	require.NoError(t, store.SaveOrder(ctx, order))

	got, err := store.GetOrder(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "42", got.OrderID)
	assert.Len(t, got.Legs, 1)
}
