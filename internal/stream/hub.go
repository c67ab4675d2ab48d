// Package stream distributes desk snapshots to subscribers.
package stream

import (
	"context"
	"sync"
	"time"

	"auction-trader/internal/models"
)

// AllTopics subscribes to every topic.
const AllTopics = "*"

// HubConfig holds configuration for the Stream Hub.
type HubConfig struct {
	// BufferSize is the size of the internal snapshot channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           256,
		SubscriberBufferSize: 16,
	}
}

// Hub fans snapshots from desks out to subscribers. Sends never block:
// a subscriber whose buffer is full misses the snapshot.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string][]*Subscriber
	snapChan    chan models.Snapshot
	done        chan struct{}
	started     bool
	consumers   []Consumer
	consumersMu sync.RWMutex

	// Metrics
	received  uint64
	delivered uint64
	dropped   uint64
	metricsMu sync.RWMutex
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	ID           string
	Channel      chan models.Snapshot
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a new stream hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new stream hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize < 1 {
		config.BufferSize = 1
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string][]*Subscriber),
		snapChan:    make(chan models.Snapshot, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's distribution loop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
	return nil
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case snap := <-h.snapChan:
			h.metricsMu.Lock()
			h.received++
			h.metricsMu.Unlock()

			h.broadcast(snap)
			h.notifyConsumers(snap)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}

	close(h.done)
	h.started = false

	for topic, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, topic)
	}
}

// Subscribe adds a subscriber for a topic and returns its channel.
func (h *Hub) Subscribe(topic string) <-chan models.Snapshot {
	return h.SubscribeWithID(topic, "")
}

// SubscribeWithID adds a subscriber with a specific ID for a topic.
func (h *Hub) SubscribeWithID(topic, id string) <-chan models.Snapshot {
	ch := make(chan models.Snapshot, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[topic] = append(h.subscribers[topic], sub)
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel for a topic.
func (h *Hub) Unsubscribe(topic string, ch <-chan models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[topic]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[topic]) == 0 {
		delete(h.subscribers, topic)
	}
}

// Publish queues a snapshot for distribution. If the internal buffer is
// full the snapshot is dropped. Delivery happens on the broadcast loop, so a
// snapshot queued before a Subscribe call can still reach that subscriber.
func (h *Hub) Publish(snap models.Snapshot) {
	select {
	case h.snapChan <- snap:
	default:
		h.metricsMu.Lock()
		h.dropped++
		h.metricsMu.Unlock()
	}
}

func (h *Hub) broadcast(snap models.Snapshot) {
	// held across the non-blocking sends so Stop cannot close a channel mid-send
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[snap.Topic]
	if snap.Topic != AllTopics {
		subs = append(subs[:len(subs):len(subs)], h.subscribers[AllTopics]...)
	}

	var delivered, dropped uint64
	for _, sub := range subs {
		select {
		case sub.Channel <- snap:
			delivered++
		default:
			sub.DroppedCount++
			dropped++
		}
	}

	h.metricsMu.Lock()
	h.delivered += delivered
	h.dropped += dropped
	h.metricsMu.Unlock()
}

// GetTotalSubscriberCount returns the number of subscribers across all topics.
func (h *Hub) GetTotalSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	subscribers := h.GetTotalSubscriberCount()

	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		Received:    h.received,
		Delivered:   h.delivered,
		Dropped:     h.dropped,
		Subscribers: subscribers,
	}
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	Received    uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Consumer processes snapshots outside the subscriber channels.
type Consumer interface {
	OnSnapshot(snap models.Snapshot)
	// Topics returns the topics of interest; empty means all.
	Topics() []string
}

// RegisterConsumer adds a consumer. Each delivery runs in its own goroutine.
func (h *Hub) RegisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	h.consumers = append(h.consumers, consumer)
	h.consumersMu.Unlock()
}

// UnregisterConsumer removes a consumer.
func (h *Hub) UnregisterConsumer(consumer Consumer) {
	h.consumersMu.Lock()
	defer h.consumersMu.Unlock()

	for i, c := range h.consumers {
		if c == consumer {
			h.consumers = append(h.consumers[:i], h.consumers[i+1:]...)
			break
		}
	}
}

func (h *Hub) notifyConsumers(snap models.Snapshot) {
	h.consumersMu.RLock()
	consumers := make([]Consumer, len(h.consumers))
	copy(consumers, h.consumers)
	h.consumersMu.RUnlock()

	for _, consumer := range consumers {
		topics := consumer.Topics()
		if len(topics) == 0 || contains(topics, snap.Topic) {
			go consumer.OnSnapshot(snap)
		}
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// ConsumerFunc is a function adapter for the Consumer interface.
type ConsumerFunc struct {
	topics []string
	fn     func(models.Snapshot)
}

// NewConsumerFunc creates a new ConsumerFunc.
func NewConsumerFunc(topics []string, fn func(models.Snapshot)) *ConsumerFunc {
	return &ConsumerFunc{topics: topics, fn: fn}
}

// OnSnapshot implements Consumer.
func (c *ConsumerFunc) OnSnapshot(snap models.Snapshot) {
	if c.fn != nil {
		c.fn(snap)
	}
}

// Topics implements Consumer.
func (c *ConsumerFunc) Topics() []string {
	return c.topics
}
