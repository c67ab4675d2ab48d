package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trader/internal/models"
	"auction-trader/internal/resilience"
)

func TestOrderStreamDeliversUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan subscribeMessage, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get(apiKeyHeader))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		_ = conn.WriteJSON(models.OrderUpdate{ClientOrderID: "c-1", OrderID: "42", Status: models.OrderStatusFilled})

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewOrderStream(OrderStreamConfig{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:  "key-123",
		Backoff: resilience.Backoff{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2},
	}, zerolog.Nop())

	updates := make(chan models.OrderUpdate, 4)
	stream.OnUpdate(func(u models.OrderUpdate) { updates <- u })

	stream.Start(context.Background())
	defer stream.Close()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "orders", sub.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case u := <-updates:
		assert.Equal(t, "c-1", u.ClientOrderID)
		assert.Equal(t, models.OrderStatusFilled, u.Status)
		assert.False(t, u.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no order update delivered")
	}
	assert.Len(t, updates, 0, "heartbeat is not an order update")
}

func TestOrderStreamReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	connections := make(chan struct{}, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connections <- struct{}{}
		// drop every connection right after the subscription
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	stream := NewOrderStream(OrderStreamConfig{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Backoff: resilience.Backoff{InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, BackoffFactor: 2},
	}, zerolog.Nop())
	stream.Start(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-connections:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d not established", i+1)
		}
	}
	require.NoError(t, stream.Close())
	assert.False(t, stream.IsConnected())
}

func TestOrderUpdateWireFormat(t *testing.T) {
	var u models.OrderUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"clientOrderId":"c-9","orderId":"7","status":"CANCELLED","message":"expired"}`), &u))
	assert.Equal(t, "c-9", u.ClientOrderID)
	assert.Equal(t, models.OrderStatusCancelled, u.Status)
	assert.Equal(t, "expired", u.Message)
}
