package models

import "time"

// Snapshot is the published result of one desk resolution cycle.
type Snapshot struct {
	Topic       string
	Generation  uint64
	Description string
	State       DraftState
	Legs        []PricedLeg
	Draft       *OrderDraft
	Payoff      []PayoffPoint
	Summary     *PayoffSummary
	// EstimateWarning is set when lock or fee estimation failed.
	EstimateWarning bool
	Submitted       *SubmittedOrder
	Timestamp       time.Time
}
