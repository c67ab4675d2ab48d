package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg is one instrument position within a multi-leg order.
type Leg struct {
	ContractID int64           `json:"contractId"`
	Quantity   decimal.Decimal `json:"quantity"`
	Side       Side            `json:"side"`
}

// PricedLeg pairs a leg with its contract and resolved premium. A nil
// premium means no price could be resolved.
type PricedLeg struct {
	Contract Contract
	Leg      Leg
	Premium  *decimal.Decimal
	Source   PriceSource
}

// Priced reports whether the leg has a premium.
func (p PricedLeg) Priced() bool {
	return p.Premium != nil
}

// Fees is the fee estimate for an order.
type Fees struct {
	NumberValue decimal.Decimal `json:"numberValue"`
	Currency    string          `json:"currency,omitempty"`
}

// DraftState is the lifecycle state of a strategy's order draft.
type DraftState int

const (
	DraftEmpty DraftState = iota
	DraftPartiallyConfigured
	DraftPriced
	DraftSubmitted
)

func (s DraftState) String() string {
	switch s {
	case DraftEmpty:
		return "EMPTY"
	case DraftPartiallyConfigured:
		return "PARTIALLY_CONFIGURED"
	case DraftPriced:
		return "PRICED"
	case DraftSubmitted:
		return "SUBMITTED"
	default:
		return "UNKNOWN"
	}
}

// OrderDraft is the submittable envelope derived from a set of priced legs.
type OrderDraft struct {
	ClientOrderID   string
	Legs            []Leg
	ReferencePrices []*decimal.Decimal
	TotalNetPrice   decimal.Decimal
	Complete        bool
	Lock            *decimal.Decimal
	Fees            *Fees
	CreatedAt       time.Time
}

// Estimated reports whether both collateral and fee estimates are present.
func (d OrderDraft) Estimated() bool {
	return d.Lock != nil && d.Fees != nil
}

// OrderStatus is the journal status of a submitted order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// SubmittedOrder is the journal record of an accepted submission.
type SubmittedOrder struct {
	ClientOrderID string
	OrderID       string
	Description   string
	CurrencyPair  string
	Expiry        time.Time
	Legs          []Leg
	TotalNetPrice decimal.Decimal
	Lock          decimal.Decimal
	Fees          decimal.Decimal
	Status        OrderStatus
	SubmittedAt   time.Time
	UpdatedAt     time.Time
}

// OrderUpdate is a status change pushed by the trading API.
type OrderUpdate struct {
	ClientOrderID string      `json:"clientOrderId"`
	OrderID       string      `json:"orderId"`
	Status        OrderStatus `json:"status"`
	Message       string      `json:"message,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}
