package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"auction-trader/internal/config"
	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/logging"
	"auction-trader/internal/models"
	"auction-trader/internal/resilience"
)

// Backend is the external pricing service.
type Backend interface {
	// MidPrice returns the mid-price of an option for an expiry date and strike.
	MidPrice(ctx context.Context, kind models.InstrumentKind, date time.Time, strike decimal.Decimal) (decimal.Decimal, error)
	// ForwardPrice returns the forward mid-price for a date.
	ForwardPrice(ctx context.Context, date time.Time) (decimal.Decimal, error)
	// PriceList prices many contracts in one round trip.
	PriceList(ctx context.Context, entries []PriceListEntry) ([]PriceListEntry, error)
}

// PriceListEntry is one contract in a batch price request.
type PriceListEntry struct {
	ContractID int64            `json:"contractId"`
	Payoff     string           `json:"payoff"`
	Expiry     string           `json:"expiry"`
	Strike     json.Number      `json:"strike,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// EntryFor builds the batch request entry for a contract.
func EntryFor(c models.Contract) PriceListEntry {
	e := PriceListEntry{
		ContractID: c.ID,
		Payoff:     string(c.Kind),
		Expiry:     c.Economics.Expiry.Format(models.DateLayout),
	}
	if c.Economics.Strike != nil {
		e.Strike = json.Number(c.Economics.Strike.String())
	}
	return e
}

// HTTPBackend talks to the pricing REST API.
type HTTPBackend struct {
	baseURL string
	client  *retryablehttp.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewHTTPBackend creates a pricing client from configuration.
func NewHTTPBackend(cfg config.PricingConfig, logger zerolog.Logger) *HTTPBackend {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = logging.NewRetryLogger(logger)

	log := logger.With().Str("component", "pricing").Logger()

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.IsFailure = func(err error) bool {
		return !apperrors.Is(err, apperrors.ErrNoPrice)
	}
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		log.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Circuit state changed")
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker("pricing", breakerCfg),
		logger:  log,
	}
}

// MidPrice implements Backend.
func (b *HTTPBackend) MidPrice(ctx context.Context, kind models.InstrumentKind, date time.Time, strike decimal.Decimal) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("payoff", string(kind))
	q.Set("date", date.Format(models.DateLayout))
	q.Set("strike", strike.String())

	price, err := b.getNumber(ctx, "/api/calc/price", q)
	if err != nil {
		return decimal.Zero, apperrors.NewPricingError("price", string(kind), q.Get("date"), q.Get("strike"), err)
	}
	return price, nil
}

// ForwardPrice implements Backend.
func (b *HTTPBackend) ForwardPrice(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("date", date.Format(models.DateLayout))

	price, err := b.getNumber(ctx, "/api/calc/forward", q)
	if err != nil {
		return decimal.Zero, apperrors.NewPricingError("forward", string(models.KindForward), q.Get("date"), "", err)
	}
	return price, nil
}

// PriceList implements Backend.
func (b *HTTPBackend) PriceList(ctx context.Context, entries []PriceListEntry) ([]PriceListEntry, error) {
	body, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	var out []PriceListEntry
	err = b.do(ctx, http.MethodPost, "/api/calc/price_list", nil, body, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	})
	if err != nil {
		return nil, apperrors.NewPricingError("price_list", "", "", "", err)
	}
	return out, nil
}

// Stats exposes the circuit breaker counters.
func (b *HTTPBackend) Stats() resilience.CircuitBreakerStats {
	return b.breaker.Stats()
}

func (b *HTTPBackend) getNumber(ctx context.Context, path string, q url.Values) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := b.do(ctx, http.MethodGet, path, q, nil, func(r io.Reader) error {
		raw, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			return apperrors.ErrNoPrice
		}
		return price.UnmarshalJSON(raw)
	})
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsZero() {
		return decimal.Zero, apperrors.ErrNoPrice
	}
	return price, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, q url.Values, body []byte, decode func(io.Reader) error) error {
	endpoint := b.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	return b.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := b.limiter.Wait(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrRateLimited, err.Error())
		}

		var reqBody interface{}
		if body != nil {
			reqBody = body
		}
		req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json;charset=UTF-8")
		}

		start := time.Now()
		resp, err := b.client.Do(req)
		logging.LogAPICall(b.logger, method, path, time.Since(start), err)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return apperrors.Wrap(apperrors.ErrTimeout, path)
			}
			return apperrors.Wrap(apperrors.ErrConnectionFailed, err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
			return apperrors.ErrNoPrice
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return decode(resp.Body)
	})
}
