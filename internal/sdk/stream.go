package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"auction-trader/internal/models"
	"auction-trader/internal/resilience"
)

const (
	streamReadTimeout = 60 * time.Second
	streamPingPeriod  = 25 * time.Second
	streamMaxRetries  = 10
)

type subscribeMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// OrderStream receives order status updates over a websocket and
// reconnects with exponential backoff.
type OrderStream struct {
	url     string
	apiKey  string
	backoff resilience.Backoff
	logger  zerolog.Logger

	onUpdate func(models.OrderUpdate)
	onError  func(error)

	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.RWMutex
	writeMu sync.Mutex
}

// OrderStreamConfig holds configuration for the order stream.
type OrderStreamConfig struct {
	URL     string
	APIKey  string
	Backoff resilience.Backoff
}

// NewOrderStream creates an order stream. It does not connect until Start.
func NewOrderStream(cfg OrderStreamConfig, logger zerolog.Logger) *OrderStream {
	b := cfg.Backoff
	if b.InitialDelay <= 0 {
		b = resilience.DefaultBackoff()
	}
	return &OrderStream{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		backoff: b,
		logger:  logger.With().Str("component", "order_stream").Logger(),
	}
}

// OnUpdate sets the order update handler.
func (s *OrderStream) OnUpdate(handler func(models.OrderUpdate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = handler
}

// OnError sets the error handler.
func (s *OrderStream) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = handler
}

// Start runs the connection loop until ctx is done or Close is called.
func (s *OrderStream) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.connectionLoop(ctx)
}

// Close stops the stream and waits for the reader to exit.
func (s *OrderStream) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	return nil
}

// IsConnected returns whether the stream has a live connection.
func (s *OrderStream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *OrderStream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn().Err(err).Int("retry", attempt).Msg("Order stream connection failed")
			attempt++
			if attempt > streamMaxRetries {
				s.reportError(fmt.Errorf("order stream: max reconnection attempts reached: %w", err))
				attempt = 0
			}
			if s.backoff.Wait(ctx, attempt) != nil {
				return
			}
			continue
		}

		attempt = 0
		s.readLoop(ctx)
		if s.backoff.Wait(ctx, 0) != nil {
			return
		}
	}
}

func (s *OrderStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	if s.apiKey != "" {
		header.Set(apiKeyHeader, s.apiKey)
	}

	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	msg, _ := json.Marshal(subscribeMessage{Type: "subscribe", Channel: "orders"})
	if err := s.write(websocket.TextMessage, msg); err != nil {
		s.closeConnection()
		return err
	}

	s.logger.Info().Str("url", s.url).Msg("Order stream connected")
	return nil
}

func (s *OrderStream) write(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	return conn.WriteMessage(msgType, data)
}

func (s *OrderStream) readLoop(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				s.closeConnection()
				return
			case <-ticker.C:
				_ = s.write(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Order stream disconnected")
			}
			s.closeConnection()
			return
		}
		s.handleMessage(msg)
	}
}

func (s *OrderStream) handleMessage(msg []byte) {
	var update models.OrderUpdate
	if err := json.Unmarshal(msg, &update); err != nil || update.ClientOrderID == "" {
		s.logger.Debug().Bytes("payload", msg).Msg("Ignoring stream message")
		return
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	s.mu.RLock()
	handler := s.onUpdate
	s.mu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

func (s *OrderStream) reportError(err error) {
	s.mu.RLock()
	handler := s.onError
	s.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

func (s *OrderStream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}
