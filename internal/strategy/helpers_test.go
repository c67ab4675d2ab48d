package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
)

var testExpiry = time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testBook lists every option kind at 1600..2200 step 100, plus a forward
// and the spot contract. Contract ids are stable: kind index * 100 + strike/100.
func testBook() *models.ContractBook {
	var contracts []models.Contract
	kinds := []models.InstrumentKind{models.KindCall, models.KindPut, models.KindBinaryCall, models.KindBinaryPut}
	for ki, kind := range kinds {
		for k := int64(1600); k <= 2200; k += 100 {
			strike := decimal.NewFromInt(k)
			contracts = append(contracts, models.Contract{
				ID:             int64(ki+1)*100 + k/100,
				Kind:           kind,
				Economics:      models.Economics{CurrencyPair: "WETH/USDC", Expiry: testExpiry, Strike: &strike},
				ReferencePrice: decimal.NewFromInt(10),
				Tradeable:      true,
			})
		}
	}
	contracts = append(contracts,
		models.Contract{ID: 900, Kind: models.KindForward, Economics: models.Economics{CurrencyPair: "WETH/USDC", Expiry: testExpiry}, ReferencePrice: dec("1905")},
		models.Contract{ID: 901, Kind: models.KindSpot, Economics: models.Economics{CurrencyPair: "WETH/USDC"}, ReferencePrice: dec("1900")},
	)
	return models.NewContractBook("WETH/USDC", testExpiry, contracts)
}

type recordedRequest struct {
	ContractID int64
	Request    pricing.PriceRequest
}

// stubResolver prices by contract id and records every request.
type stubResolver struct {
	mu       sync.Mutex
	prices   map[int64]decimal.Decimal
	requests []recordedRequest
}

func (s *stubResolver) ResolveWithFallback(_ context.Context, req pricing.PriceRequest, c models.Contract) (*decimal.Decimal, models.PriceSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, recordedRequest{ContractID: c.ID, Request: req})
	p, ok := s.prices[c.ID]
	if !ok {
		return nil, models.SourceNone
	}
	return &p, models.SourceLive
}

func (s *stubResolver) Spreads() pricing.SpreadModel {
	return pricing.DefaultSpreadModel()
}

func (s *stubResolver) requestFor(id int64) (pricing.PriceRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.ContractID == id {
			return r.Request, true
		}
	}
	return pricing.PriceRequest{}, false
}
