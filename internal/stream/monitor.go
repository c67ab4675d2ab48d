package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auction-trader/internal/models"
	"auction-trader/internal/notify"
)

// AlertCondition represents the type of alert condition on a draft's net
// price.
type AlertCondition string

const (
	// AlertConditionAbove triggers when the net price is at or above the target.
	AlertConditionAbove AlertCondition = "above"
	// AlertConditionBelow triggers when the net price is at or below the target.
	AlertConditionBelow AlertCondition = "below"
	// AlertConditionCrossAbove triggers when the net price crosses above the target.
	AlertConditionCrossAbove AlertCondition = "cross_above"
	// AlertConditionCrossBelow triggers when the net price crosses below the target.
	AlertConditionCrossBelow AlertCondition = "cross_below"
)

// ParseAlertCondition parses a user-supplied condition.
func ParseAlertCondition(s string) (AlertCondition, error) {
	switch c := AlertCondition(s); c {
	case AlertConditionAbove, AlertConditionBelow, AlertConditionCrossAbove, AlertConditionCrossBelow:
		return c, nil
	}
	return "", fmt.Errorf("unknown alert condition %q", s)
}

// PriceAlert fires once when a topic's net price meets its condition.
type PriceAlert struct {
	ID          string
	Topic       string
	Condition   AlertCondition
	Target      decimal.Decimal
	Triggered   bool
	TriggeredAt *time.Time
	CreatedAt   time.Time
}

// DeskMonitor watches desk snapshots. It raises net-price alerts and
// notifies on estimate warnings and state changes. It implements Consumer.
type DeskMonitor struct {
	notifier notify.Notifier
	alerts   map[string][]*PriceAlert // topic -> alerts
	mu       sync.Mutex

	prevPrice map[string]decimal.Decimal
	prevState map[string]models.DraftState
	warned    map[string]bool
	lastGen   map[string]uint64

	onTrigger func(*PriceAlert, models.Snapshot)
}

// NewDeskMonitor creates a monitor. A nil notifier disables notifications.
func NewDeskMonitor(notifier notify.Notifier) *DeskMonitor {
	if notifier == nil {
		notifier = notify.NewNoOpNotifier()
	}
	return &DeskMonitor{
		notifier:  notifier,
		alerts:    make(map[string][]*PriceAlert),
		prevPrice: make(map[string]decimal.Decimal),
		prevState: make(map[string]models.DraftState),
		warned:    make(map[string]bool),
		lastGen:   make(map[string]uint64),
	}
}

// SetOnTrigger sets a callback invoked when an alert triggers.
func (m *DeskMonitor) SetOnTrigger(fn func(*PriceAlert, models.Snapshot)) {
	m.mu.Lock()
	m.onTrigger = fn
	m.mu.Unlock()
}

// CreateAlert registers a new alert for a topic.
func (m *DeskMonitor) CreateAlert(topic string, condition AlertCondition, target decimal.Decimal) *PriceAlert {
	alert := &PriceAlert{
		ID:        uuid.NewString(),
		Topic:     topic,
		Condition: condition,
		Target:    target,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.alerts[topic] = append(m.alerts[topic], alert)
	m.mu.Unlock()
	return alert
}

// RemoveAlert removes an alert by ID.
func (m *DeskMonitor) RemoveAlert(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, alerts := range m.alerts {
		for i, a := range alerts {
			if a.ID == id {
				m.alerts[topic] = append(alerts[:i], alerts[i+1:]...)
				if len(m.alerts[topic]) == 0 {
					delete(m.alerts, topic)
				}
				return
			}
		}
	}
}

// GetAlerts returns the alerts that have not triggered yet.
func (m *DeskMonitor) GetAlerts() []*PriceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*PriceAlert
	for _, alerts := range m.alerts {
		for _, a := range alerts {
			if !a.Triggered {
				out = append(out, a)
			}
		}
	}
	return out
}

// Topics implements Consumer. The monitor watches every topic.
func (m *DeskMonitor) Topics() []string {
	return nil
}

// OnSnapshot implements Consumer.
func (m *DeskMonitor) OnSnapshot(snap models.Snapshot) {
	m.Check(context.Background(), snap)
}

// Check evaluates one snapshot. Snapshots older than the last one seen for
// the topic are ignored.
func (m *DeskMonitor) Check(ctx context.Context, snap models.Snapshot) {
	m.mu.Lock()
	if snap.Generation != 0 && snap.Generation < m.lastGen[snap.Topic] {
		m.mu.Unlock()
		return
	}
	m.lastGen[snap.Topic] = snap.Generation

	var notes []notify.Notification

	prevState, seen := m.prevState[snap.Topic]
	m.prevState[snap.Topic] = snap.State
	if seen && prevState != snap.State && snap.State == models.DraftPriced {
		notes = append(notes, notify.Notification{
			Type:    notify.NotificationInfo,
			Title:   "Strategy priced",
			Message: fmt.Sprintf("%s is ready to submit", describe(snap)),
		})
	}

	if snap.EstimateWarning && !m.warned[snap.Topic] {
		notes = append(notes, notify.Notification{
			Type:    notify.NotificationWarning,
			Title:   "Estimates unavailable",
			Message: fmt.Sprintf("Collateral or fee estimate failed for %s", describe(snap)),
		})
	}
	m.warned[snap.Topic] = snap.EstimateWarning

	var fired []*PriceAlert
	if snap.Draft != nil && snap.Draft.Complete {
		price := snap.Draft.TotalNetPrice
		prev, hasPrev := m.prevPrice[snap.Topic]
		m.prevPrice[snap.Topic] = price

		for _, a := range m.alerts[snap.Topic] {
			if !a.Triggered && isTriggered(a, price, prev, hasPrev) {
				now := time.Now()
				a.Triggered = true
				a.TriggeredAt = &now
				fired = append(fired, a)
			}
		}
		m.pruneTriggered(snap.Topic)
	}
	onTrigger := m.onTrigger
	m.mu.Unlock()

	for _, a := range fired {
		notes = append(notes, notify.Notification{
			Type:  notify.NotificationOrder,
			Title: "Price alert",
			Message: fmt.Sprintf("%s net price %s is %s %s",
				describe(snap), snap.Draft.TotalNetPrice, a.Condition, a.Target),
			Data: map[string]interface{}{"alert_id": a.ID, "topic": a.Topic},
		})
		if onTrigger != nil {
			onTrigger(a, snap)
		}
	}

	for _, n := range notes {
		_ = m.notifier.Send(ctx, n)
	}
}

func (m *DeskMonitor) pruneTriggered(topic string) {
	alerts := m.alerts[topic]
	kept := alerts[:0]
	for _, a := range alerts {
		if !a.Triggered {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(m.alerts, topic)
		return
	}
	m.alerts[topic] = kept
}

func isTriggered(a *PriceAlert, price, prev decimal.Decimal, hasPrev bool) bool {
	switch a.Condition {
	case AlertConditionAbove:
		return price.GreaterThanOrEqual(a.Target)
	case AlertConditionBelow:
		return price.LessThanOrEqual(a.Target)
	case AlertConditionCrossAbove:
		return hasPrev && prev.LessThan(a.Target) && price.GreaterThanOrEqual(a.Target)
	case AlertConditionCrossBelow:
		return hasPrev && prev.GreaterThan(a.Target) && price.LessThanOrEqual(a.Target)
	}
	return false
}

func describe(snap models.Snapshot) string {
	if snap.Description != "" {
		return snap.Description
	}
	return snap.Topic
}

var _ Consumer = (*DeskMonitor)(nil)
