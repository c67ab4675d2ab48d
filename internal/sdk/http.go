package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-trader/internal/config"
	apperrors "auction-trader/internal/errors"
	"auction-trader/internal/logging"
	"auction-trader/internal/models"
)

const apiKeyHeader = "X-API-Key"

// HTTPClient implements Client against the trading REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	submit  *retryablehttp.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates a live trading API client. Reads are retried;
// order submission goes through a client with retries disabled.
func NewHTTPClient(cfg config.SDKConfig, apiKey string, logger zerolog.Logger) *HTTPClient {
	log := logger.With().Str("component", "sdk").Logger()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logging.NewRetryLogger(log)

	submit := retryablehttp.NewClient()
	submit.RetryMax = 0
	submit.HTTPClient.Timeout = timeout
	submit.Logger = logging.NewRetryLogger(log)

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  apiKey,
		client:  client,
		submit:  submit,
		logger:  log,
	}
}

type economicsDTO struct {
	CurrencyPair  string           `json:"currencyPair"`
	Expiry        string           `json:"expiry"`
	Strike        *decimal.Decimal `json:"strike,omitempty"`
	PriceCurrency string           `json:"priceCurrency"`
	QtyCurrency   string           `json:"qtyCurrency"`
}

type contractDTO struct {
	ContractID int64        `json:"contractId"`
	Payoff     string       `json:"payoff"`
	Tradeable  bool         `json:"tradeable"`
	Economics  economicsDTO `json:"economics"`
}

type referencePriceDTO struct {
	ContractID     int64           `json:"contractId"`
	ReferencePrice decimal.Decimal `json:"referencePrice"`
}

type lockDTO struct {
	UnderlierAmount decimal.Decimal `json:"underlierAmount"`
	NumeraireAmount decimal.Decimal `json:"numeraireAmount"`
}

// Contracts implements Client. Reference prices are merged into the
// contract list; contracts without one keep a zero reference price.
func (c *HTTPClient) Contracts(ctx context.Context, pair string) ([]models.Contract, error) {
	var list []contractDTO
	if err := c.get(ctx, "/protocol/contractList", nil, &list); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("currencyPair", pair)
	var refs []referencePriceDTO
	if err := c.get(ctx, "/market/referencePrices", q, &refs); err != nil {
		// contracts are still usable; prices fall back to the pricing backend
		c.logger.Warn().Err(err).Msg("Reference prices unavailable")
	}
	byID := make(map[int64]decimal.Decimal, len(refs))
	for _, r := range refs {
		byID[r.ContractID] = r.ReferencePrice
	}

	out := make([]models.Contract, 0, len(list))
	for _, dto := range list {
		if pair != "" && dto.Economics.CurrencyPair != pair {
			continue
		}
		kind, err := models.ParseInstrumentKind(dto.Payoff)
		if err != nil {
			c.logger.Debug().Str("payoff", dto.Payoff).Int64("contract_id", dto.ContractID).Msg("Skipping contract")
			continue
		}
		contract := models.Contract{
			ID:             dto.ContractID,
			Kind:           kind,
			ReferencePrice: byID[dto.ContractID],
			Tradeable:      dto.Tradeable,
			Economics: models.Economics{
				CurrencyPair:  dto.Economics.CurrencyPair,
				Strike:        dto.Economics.Strike,
				PriceCurrency: dto.Economics.PriceCurrency,
				QtyCurrency:   dto.Economics.QtyCurrency,
			},
		}
		if dto.Economics.Expiry != "" {
			expiry, err := time.Parse(models.DateLayout, dto.Economics.Expiry)
			if err != nil {
				return nil, apperrors.NewSDKError("DECODE", fmt.Sprintf("contract %d expiry %q", dto.ContractID, dto.Economics.Expiry), err)
			}
			contract.Economics.Expiry = expiry
		}
		out = append(out, contract)
	}
	return out, nil
}

// SpotPrice implements Client.
func (c *HTTPClient) SpotPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	var prices map[string]decimal.Decimal
	if err := c.get(ctx, "/market/spotPrices", nil, &prices); err != nil {
		return decimal.Zero, err
	}
	p, ok := prices[pair]
	if !ok || !p.IsPositive() {
		return decimal.Zero, apperrors.Wrapf(apperrors.ErrNoPrice, "spot %s", pair)
	}
	return p, nil
}

// EstimateOrderLock implements Client.
func (c *HTTPClient) EstimateOrderLock(ctx context.Context, draft models.OrderDraft) (decimal.Decimal, error) {
	var lock lockDTO
	if err := c.post(ctx, c.client, "/calculation/estimateOrderLock", PayloadFor(draft, ""), &lock); err != nil {
		return decimal.Zero, err
	}
	return lock.NumeraireAmount, nil
}

// EstimateOrderFees implements Client.
func (c *HTTPClient) EstimateOrderFees(ctx context.Context, draft models.OrderDraft) (models.Fees, error) {
	var fees models.Fees
	if err := c.post(ctx, c.client, "/calculation/estimateOrderFees", PayloadFor(draft, ""), &fees); err != nil {
		return models.Fees{}, err
	}
	return fees, nil
}

// NewOrder implements Client. It is sent exactly once.
func (c *HTTPClient) NewOrder(ctx context.Context, draft models.OrderDraft, description string) (OrderReceipt, error) {
	var receipt OrderReceipt
	err := c.post(ctx, c.submit, "/orders/newOrder", PayloadFor(draft, description), &receipt)
	if err != nil {
		return OrderReceipt{}, apperrors.NewOrderError(draft.ClientOrderID, "submit", "trading API refused the order", err)
	}
	if receipt.ClientOrderID == "" {
		receipt.ClientOrderID = draft.ClientOrderID
	}
	if receipt.Status == "" {
		receipt.Status = models.OrderStatusOpen
	}
	if receipt.Status == models.OrderStatusRejected {
		return receipt, apperrors.NewOrderError(draft.ClientOrderID, "submit", receipt.Message, apperrors.ErrOrderRejected)
	}
	return receipt, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(c.client, req, path, out)
}

func (c *HTTPClient) post(ctx context.Context, client *retryablehttp.Client, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, raw)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(client, req, path, out)
}

func (c *HTTPClient) do(client *retryablehttp.Client, req *retryablehttp.Request, path string, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	logging.LogAPICall(c.logger, req.Method, path, time.Since(start), err)
	if err != nil {
		return apperrors.NewSDKError("NETWORK", path, apperrors.Wrap(apperrors.ErrConnectionFailed, err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var cause error
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
			cause = apperrors.ErrOrderRejected
		}
		return apperrors.NewSDKError(strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(msg)), cause)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewSDKError("DECODE", path, err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
