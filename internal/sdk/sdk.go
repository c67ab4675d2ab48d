// Package sdk provides the trading API collaborators: contract lists,
// collateral and fee estimation, order submission and order updates.
package sdk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/models"
)

// Client defines the trading API operations the desk depends on.
type Client interface {
	// Contracts lists every contract of a currency pair with its reference price.
	Contracts(ctx context.Context, pair string) ([]models.Contract, error)
	// SpotPrice returns the current spot for a currency pair.
	SpotPrice(ctx context.Context, pair string) (decimal.Decimal, error)
	// EstimateOrderLock returns the collateral an order would lock.
	EstimateOrderLock(ctx context.Context, draft models.OrderDraft) (decimal.Decimal, error)
	// EstimateOrderFees returns the fees an order would pay.
	EstimateOrderFees(ctx context.Context, draft models.OrderDraft) (models.Fees, error)
	// NewOrder submits a draft. Implementations never retry a submission.
	NewOrder(ctx context.Context, draft models.OrderDraft, description string) (OrderReceipt, error)
}

// OrderReceipt is the trading API's acknowledgement of a submission.
type OrderReceipt struct {
	OrderID       string             `json:"orderId"`
	ClientOrderID string             `json:"clientOrderId"`
	Status        models.OrderStatus `json:"status"`
	Message       string             `json:"message,omitempty"`
}

// OrderPayload is the wire form of a new order.
type OrderPayload struct {
	ClientOrderID string       `json:"clientOrderId"`
	TotalNetPrice string       `json:"totalNetPrice"`
	Legs          []models.Leg `json:"legs"`
	OrderDescr    string       `json:"orderDescr,omitempty"`
}

// PayloadFor converts a draft to its wire form.
func PayloadFor(draft models.OrderDraft, description string) OrderPayload {
	return OrderPayload{
		ClientOrderID: draft.ClientOrderID,
		TotalNetPrice: draft.TotalNetPrice.String(),
		Legs:          draft.Legs,
		OrderDescr:    description,
	}
}

// LoadBook fetches the contracts of a pair and indexes those of the
// nearest expiry that has not passed. A zero expiry selects it
// automatically.
func LoadBook(ctx context.Context, client Client, pair string, expiry time.Time) (*models.ContractBook, error) {
	contracts, err := client.Contracts(ctx, pair)
	if err != nil {
		return nil, err
	}
	if expiry.IsZero() {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		for _, e := range models.Expiries(contracts) {
			if !e.Before(today) {
				expiry = e
				break
			}
		}
	}
	if expiry.IsZero() {
		return nil, apperrors.Wrapf(apperrors.ErrContractNotFound, "no open expiry for %s", pair)
	}
	return models.NewContractBook(pair, expiry, contracts), nil
}
