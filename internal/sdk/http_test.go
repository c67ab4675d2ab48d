package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trader/internal/config"
	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.SDKConfig{APIURL: srv.URL, Timeout: 2 * time.Second}, "key-123", zerolog.Nop())
}

func testDraft() models.OrderDraft {
	p1, p2 := dec("52.625"), dec("27.375")
	return models.OrderDraft{
		ClientOrderID: "c-1",
		Legs: []models.Leg{
			{ContractID: 101, Quantity: dec("1"), Side: models.SideBuy},
			{ContractID: 202, Quantity: dec("1"), Side: models.SideSell},
		},
		ReferencePrices: []*decimal.Decimal{&p1, &p2},
		TotalNetPrice:   dec("25.25"),
		Complete:        true,
	}
}

func TestHTTPClientContractsMergesReferencePrices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/protocol/contractList", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get(apiKeyHeader))
		_, _ = w.Write([]byte(`[
			{"contractId":101,"payoff":"Call","tradeable":true,"economics":{"currencyPair":"WETH/USDC","expiry":"2026-10-23","strike":1800,"priceCurrency":"USDC","qtyCurrency":"WETH"}},
			{"contractId":900,"payoff":"Forward","tradeable":true,"economics":{"currencyPair":"WETH/USDC","expiry":"2026-10-23","priceCurrency":"USDC","qtyCurrency":"WETH"}},
			{"contractId":5,"payoff":"Call","tradeable":true,"economics":{"currencyPair":"WBTC/USDC","expiry":"2026-10-23","strike":60000}},
			{"contractId":7,"payoff":"Exotic","economics":{"currencyPair":"WETH/USDC","expiry":"2026-10-23"}}
		]`))
	})
	mux.HandleFunc("/market/referencePrices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "WETH/USDC", r.URL.Query().Get("currencyPair"))
		_, _ = w.Write([]byte(`[{"contractId":101,"referencePrice":"61.5"}]`))
	})
	c := newTestClient(t, mux)

	contracts, err := c.Contracts(context.Background(), "WETH/USDC")
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	call := contracts[0]
	assert.Equal(t, models.KindCall, call.Kind)
	assert.True(t, call.ReferencePrice.Equal(dec("61.5")))
	require.NotNil(t, call.Economics.Strike)
	assert.True(t, call.Economics.Strike.Equal(dec("1800")))
	assert.Equal(t, "2026-10-23", call.Economics.Expiry.Format(models.DateLayout))

	fwd := contracts[1]
	assert.Equal(t, models.KindForward, fwd.Kind)
	assert.Nil(t, fwd.Economics.Strike)
	assert.True(t, fwd.ReferencePrice.IsZero())
}

func TestHTTPClientSpotPrice(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"WETH/USDC":"1912.5"}`))
	}))

	spot, err := c.SpotPrice(context.Background(), "WETH/USDC")
	require.NoError(t, err)
	assert.True(t, spot.Equal(dec("1912.5")))

	_, err = c.SpotPrice(context.Background(), "WBTC/USDC")
	assert.ErrorIs(t, err, apperrors.ErrNoPrice)
}

func TestHTTPClientEstimates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calculation/estimateOrderLock", func(w http.ResponseWriter, r *http.Request) {
		var p OrderPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "c-1", p.ClientOrderID)
		assert.Equal(t, "25.25", p.TotalNetPrice)
		assert.Len(t, p.Legs, 2)
		_, _ = w.Write([]byte(`{"underlierAmount":0,"numeraireAmount":1825.25}`))
	})
	mux.HandleFunc("/calculation/estimateOrderFees", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"numberValue":0.032,"currency":"USDC"}`))
	})
	c := newTestClient(t, mux)

	lock, err := c.EstimateOrderLock(context.Background(), testDraft())
	require.NoError(t, err)
	assert.True(t, lock.Equal(dec("1825.25")))

	fees, err := c.EstimateOrderFees(context.Background(), testDraft())
	require.NoError(t, err)
	assert.True(t, fees.NumberValue.Equal(dec("0.032")))
	assert.Equal(t, "USDC", fees.Currency)
}

func TestHTTPClientNewOrderIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.NewOrder(context.Background(), testDraft(), "Bull Call Spread")
	require.Error(t, err)

	var orderErr *apperrors.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "c-1", orderErr.ClientOrderID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPClientNewOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/newOrder", func(w http.ResponseWriter, r *http.Request) {
		var p OrderPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "Bull Call Spread", p.OrderDescr)
		if p.ClientOrderID == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"price out of range"}`))
			return
		}
		_, _ = w.Write([]byte(`{"orderId":"42","status":"OPEN"}`))
	})
	c := newTestClient(t, mux)

	receipt, err := c.NewOrder(context.Background(), testDraft(), "Bull Call Spread")
	require.NoError(t, err)
	assert.Equal(t, "42", receipt.OrderID)
	assert.Equal(t, "c-1", receipt.ClientOrderID)
	assert.Equal(t, models.OrderStatusOpen, receipt.Status)

	bad := testDraft()
	bad.ClientOrderID = "bad"
	_, err = c.NewOrder(context.Background(), bad, "Bull Call Spread")
	assert.ErrorIs(t, err, apperrors.ErrOrderRejected)
}
