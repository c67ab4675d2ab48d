// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"auction-trader/internal/models"
)

// OrderStore is the journal of submitted orders.
type OrderStore interface {
	SaveOrder(ctx context.Context, order *models.SubmittedOrder) error
	GetOrders(ctx context.Context, filter OrderFilter) ([]models.SubmittedOrder, error)
	// GetOrder looks an order up by client order id. A missing order
	// returns ErrOrderNotFound.
	GetOrder(ctx context.Context, clientOrderID string) (*models.SubmittedOrder, error)
	UpdateOrderStatus(ctx context.Context, clientOrderID string, status models.OrderStatus) error

	// Lifecycle
	Close() error
}

// OrderFilter represents filters for querying orders.
type OrderFilter struct {
	CurrencyPair string
	Status       models.OrderStatus
	StartDate    time.Time
	EndDate      time.Time
	Limit        int
}
