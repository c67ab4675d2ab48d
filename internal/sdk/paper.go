package sdk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-trader/internal/config"
	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
	"auction-trader/internal/pricing"
)

// PaperClient implements Client and pricing.Backend for paper trading
// against a synthetic contract grid.
type PaperClient struct {
	pair         string
	spot         decimal.Decimal
	strikes      []decimal.Decimal
	expiry       time.Time
	timeValue    float64
	feeRate      decimal.Decimal
	lockMultiple decimal.Decimal

	contracts []models.Contract
	byID      map[int64]models.Contract

	// Simulated state
	orders       map[string]*models.SubmittedOrder
	orderCounter int
	onUpdate     func(models.OrderUpdate)

	now func() time.Time
	mu  sync.RWMutex
}

// PaperClientConfig holds configuration for the paper client.
type PaperClientConfig struct {
	CurrencyPair string
	Paper        config.PaperConfig
	Now          func() time.Time
}

// NewPaperClient creates a paper client and lists its contracts.
func NewPaperClient(cfg PaperClientConfig) *PaperClient {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pair := cfg.CurrencyPair
	if pair == "" {
		pair = "WETH/USDC"
	}
	days := cfg.Paper.ExpiryDays
	if days <= 0 {
		days = 7
	}

	today := now().UTC().Truncate(24 * time.Hour)
	p := &PaperClient{
		pair:         pair,
		spot:         decimal.NewFromFloat(cfg.Paper.Spot),
		expiry:       today.AddDate(0, 0, days).Add(8 * time.Hour),
		timeValue:    cfg.Paper.TimeValue,
		feeRate:      decimal.NewFromFloat(cfg.Paper.FeeRate),
		lockMultiple: decimal.NewFromFloat(cfg.Paper.LockMultiple),
		byID:         make(map[int64]models.Contract),
		orders:       make(map[string]*models.SubmittedOrder),
		now:          now,
	}
	if p.lockMultiple.IsZero() {
		p.lockMultiple = decimal.NewFromInt(1)
	}
	for _, s := range cfg.Paper.Strikes {
		p.strikes = append(p.strikes, decimal.NewFromFloat(s))
	}
	sort.Slice(p.strikes, func(i, j int) bool { return p.strikes[i].LessThan(p.strikes[j]) })

	p.listContracts()
	return p
}

func (p *PaperClient) listContracts() {
	priceCcy, qtyCcy := "USDC", "WETH"
	econ := func(strike *decimal.Decimal, expiry time.Time) models.Economics {
		return models.Economics{
			CurrencyPair:  p.pair,
			Expiry:        expiry,
			Strike:        strike,
			PriceCurrency: priceCcy,
			QtyCurrency:   qtyCcy,
		}
	}

	add := func(c models.Contract) {
		c.Tradeable = true
		p.contracts = append(p.contracts, c)
		p.byID[c.ID] = c
	}

	add(models.Contract{ID: 1, Kind: models.KindSpot, Economics: econ(nil, time.Time{}), ReferencePrice: p.spot})
	add(models.Contract{ID: 2, Kind: models.KindForward, Economics: econ(nil, p.expiry), ReferencePrice: p.spot})

	kinds := []models.InstrumentKind{models.KindCall, models.KindPut, models.KindBinaryCall, models.KindBinaryPut}
	for ki, kind := range kinds {
		for si, s := range p.strikes {
			strike := s
			add(models.Contract{
				ID:             int64(100*(ki+1) + si),
				Kind:           kind,
				Economics:      econ(&strike, p.expiry),
				ReferencePrice: p.mid(kind, strike),
			})
		}
	}
}

// mid is a deterministic placeholder valuation: intrinsic value plus a time
// value that decays away from the money.
func (p *PaperClient) mid(kind models.InstrumentKind, strike decimal.Decimal) decimal.Decimal {
	s, _ := p.spot.Float64()
	k, _ := strike.Float64()
	if s <= 0 {
		return decimal.Zero
	}
	width := 0.05 * s
	moneyness := (s - k) / width
	tv := p.timeValue / (1 + moneyness*moneyness)

	var v float64
	switch kind {
	case models.KindCall:
		v = math.Max(s-k, 0) + tv
	case models.KindPut:
		v = math.Max(k-s, 0) + tv
	case models.KindBinaryCall:
		v = 1 / (1 + math.Exp(-moneyness))
	case models.KindBinaryPut:
		v = 1 - 1/(1+math.Exp(-moneyness))
	default:
		return p.spot
	}
	if kind.IsBinary() {
		v = math.Min(math.Max(v, 0.01), 0.99)
		return decimal.NewFromFloat(v).Round(4)
	}
	return decimal.NewFromFloat(v).Round(2)
}

// Expiry returns the expiry of the synthetic book.
func (p *PaperClient) Expiry() time.Time {
	return p.expiry
}

// Contracts implements Client.
func (p *PaperClient) Contracts(ctx context.Context, pair string) ([]models.Contract, error) {
	if pair != "" && pair != p.pair {
		return nil, apperrors.Wrapf(apperrors.ErrContractNotFound, "paper market lists %s only", p.pair)
	}
	out := make([]models.Contract, len(p.contracts))
	copy(out, p.contracts)
	return out, nil
}

// SpotPrice implements Client.
func (p *PaperClient) SpotPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if pair != "" && pair != p.pair {
		return decimal.Zero, apperrors.Wrapf(apperrors.ErrNoPrice, "spot %s", pair)
	}
	return p.spot, nil
}

// MidPrice implements pricing.Backend.
func (p *PaperClient) MidPrice(ctx context.Context, kind models.InstrumentKind, date time.Time, strike decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	for _, s := range p.strikes {
		if s.Equal(strike) {
			return p.mid(kind, strike), nil
		}
	}
	return decimal.Zero, apperrors.NewPricingError("price", string(kind), date.Format(models.DateLayout), strike.String(), apperrors.ErrNoPrice)
}

// ForwardPrice implements pricing.Backend.
func (p *PaperClient) ForwardPrice(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return p.spot, nil
}

// PriceList implements pricing.Backend.
func (p *PaperClient) PriceList(ctx context.Context, entries []pricing.PriceListEntry) ([]pricing.PriceListEntry, error) {
	out := make([]pricing.PriceListEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		c, ok := p.byID[e.ContractID]
		if !ok {
			continue
		}
		price := c.ReferencePrice
		out[i].Price = &price
	}
	return out, nil
}

// EstimateOrderLock implements Client. Short legs lock their notional
// exposure times the lock multiple; a net debit is locked in full.
func (p *PaperClient) EstimateOrderLock(ctx context.Context, draft models.OrderDraft) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	lock := decimal.Zero
	for _, leg := range draft.Legs {
		c, ok := p.byID[leg.ContractID]
		if !ok {
			return decimal.Zero, apperrors.NewSDKError("UNKNOWN_CONTRACT", fmt.Sprintf("contract %d", leg.ContractID), apperrors.ErrContractNotFound)
		}
		if leg.Side != models.SideSell {
			continue
		}
		var exposure decimal.Decimal
		switch {
		case c.Kind.IsBinary():
			exposure = decimal.NewFromInt(1)
		case c.Kind == models.KindPut:
			exposure = c.StrikeValue()
		default:
			exposure = p.spot
		}
		lock = lock.Add(exposure.Mul(leg.Quantity).Mul(p.lockMultiple))
	}
	if draft.TotalNetPrice.IsPositive() {
		lock = lock.Add(draft.TotalNetPrice)
	}
	return lock.Round(2), nil
}

// EstimateOrderFees implements Client. Fees are the fee rate times the
// absolute premium notional of the priced legs.
func (p *PaperClient) EstimateOrderFees(ctx context.Context, draft models.OrderDraft) (models.Fees, error) {
	if err := ctx.Err(); err != nil {
		return models.Fees{}, err
	}
	notional := decimal.Zero
	for i, leg := range draft.Legs {
		if i >= len(draft.ReferencePrices) || draft.ReferencePrices[i] == nil {
			continue
		}
		notional = notional.Add(draft.ReferencePrices[i].Mul(leg.Quantity).Abs())
	}
	return models.Fees{NumberValue: notional.Mul(p.feeRate).Round(4), Currency: "USDC"}, nil
}

// NewOrder implements Client. Paper orders rest as OPEN.
func (p *PaperClient) NewOrder(ctx context.Context, draft models.OrderDraft, description string) (OrderReceipt, error) {
	if !draft.Complete {
		return OrderReceipt{}, apperrors.NewOrderError(draft.ClientOrderID, "submit", "draft is incomplete", apperrors.ErrDraftIncomplete)
	}

	p.mu.Lock()
	if _, dup := p.orders[draft.ClientOrderID]; dup {
		p.mu.Unlock()
		return OrderReceipt{}, apperrors.NewOrderError(draft.ClientOrderID, "submit", "duplicate client order id", apperrors.ErrOrderRejected)
	}
	for _, leg := range draft.Legs {
		if _, ok := p.byID[leg.ContractID]; !ok {
			p.mu.Unlock()
			return OrderReceipt{}, apperrors.NewOrderError(draft.ClientOrderID, "submit", fmt.Sprintf("unknown contract %d", leg.ContractID), apperrors.ErrOrderRejected)
		}
	}

	p.orderCounter++
	now := p.now()
	orderID := fmt.Sprintf("PAPER_%d_%d", now.Unix(), p.orderCounter)
	p.orders[draft.ClientOrderID] = &models.SubmittedOrder{
		ClientOrderID: draft.ClientOrderID,
		OrderID:       orderID,
		Description:   description,
		CurrencyPair:  p.pair,
		Expiry:        p.expiry,
		Legs:          append([]models.Leg(nil), draft.Legs...),
		TotalNetPrice: draft.TotalNetPrice,
		Status:        models.OrderStatusOpen,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
	handler := p.onUpdate
	p.mu.Unlock()

	receipt := OrderReceipt{
		OrderID:       orderID,
		ClientOrderID: draft.ClientOrderID,
		Status:        models.OrderStatusOpen,
		Message:       "Paper order placed",
	}
	if handler != nil {
		handler(models.OrderUpdate{
			ClientOrderID: draft.ClientOrderID,
			OrderID:       orderID,
			Status:        models.OrderStatusOpen,
			Message:       receipt.Message,
			Timestamp:     now,
		})
	}
	return receipt, nil
}

// CancelOrder simulates order cancellation.
func (p *PaperClient) CancelOrder(ctx context.Context, clientOrderID string) error {
	p.mu.Lock()
	order, ok := p.orders[clientOrderID]
	if !ok {
		p.mu.Unlock()
		return apperrors.NewOrderError(clientOrderID, "cancel", "order not found", nil)
	}
	if order.Status != models.OrderStatusOpen {
		p.mu.Unlock()
		return apperrors.NewOrderError(clientOrderID, "cancel", fmt.Sprintf("cannot cancel order with status: %s", order.Status), nil)
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = p.now()
	update := models.OrderUpdate{
		ClientOrderID: clientOrderID,
		OrderID:       order.OrderID,
		Status:        order.Status,
		Message:       "Paper order cancelled",
		Timestamp:     order.UpdatedAt,
	}
	handler := p.onUpdate
	p.mu.Unlock()

	if handler != nil {
		handler(update)
	}
	return nil
}

// Orders returns all paper orders ordered by submission time.
func (p *PaperClient) Orders() []models.SubmittedOrder {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.SubmittedOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// OnUpdate registers the order update handler.
func (p *PaperClient) OnUpdate(handler func(models.OrderUpdate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = handler
}

var (
	_ Client          = (*PaperClient)(nil)
	_ pricing.Backend = (*PaperClient)(nil)
)
