package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/asterbot/internal/domain"
	"github.com/vadiminshakov/asterbot/internal/monitor"
	"github.com/vadiminshakov/asterbot/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultAsterBaseURL is the Aster futures REST host.
	DefaultAsterBaseURL = "https://fapi.asterdex.com"

	asterRequestTimeout = 30 * time.Second

	pathOrder        = "/fapi/v3/order"
	pathPositionRisk = "/fapi/v3/positionRisk"
	pathAccount      = "/fapi/v3/account"
	pathOpenOrders   = "/fapi/v3/openOrders"
	pathLeverage     = "/fapi/v3/leverage"

	defaultRequestsPerSecond = 5
	defaultBurst             = 5
	defaultReadRetries       = 2
	defaultReadRetryInterval = 500 * time.Millisecond
)

// requestSigner is satisfied by RequestSigner.
type requestSigner interface {
	Sign(params Params) (*domain.SignedEnvelope, error)
}

// AsterClient is the exchange gateway for Aster perpetual futures.
// Every request is signed, rate limited, and classified into ValidationError,
// TransportError or DecodeError on failure.
type AsterClient struct {
	baseURL     string
	httpClient  *http.Client
	signer      requestSigner
	limiter     *rate.Limiter
	readRetrier *retrier.Retrier
	metrics     *monitor.Metrics
	logger      *zap.Logger
}

// AsterOption configures an AsterClient.
type AsterOption func(*AsterClient)

// WithBaseURL overrides the REST host.
func WithBaseURL(baseURL string) AsterOption {
	return func(c *AsterClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) AsterOption {
	return func(c *AsterClient) {
		c.httpClient = client
	}
}

// WithRateLimit sets the outbound request budget.
func WithRateLimit(perSecond float64, burst int) AsterOption {
	return func(c *AsterClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithReadRetry sets how many times idempotent reads are retried.
func WithReadRetry(maxRetries int, initialInterval time.Duration) AsterOption {
	return func(c *AsterClient) {
		c.readRetrier = newReadRetrier(maxRetries, initialInterval, c.logger)
	}
}

// WithMetrics reports every call to m.
func WithMetrics(m *monitor.Metrics) AsterOption {
	return func(c *AsterClient) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AsterOption {
	return func(c *AsterClient) {
		c.logger = logger
	}
}

// NewAsterClient creates a gateway that signs requests with signer.
func NewAsterClient(signer requestSigner, opts ...AsterOption) *AsterClient {
	c := &AsterClient{
		baseURL:    DefaultAsterBaseURL,
		httpClient: &http.Client{Timeout: asterRequestTimeout},
		signer:     signer,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.readRetrier == nil {
		c.readRetrier = newReadRetrier(defaultReadRetries, defaultReadRetryInterval, c.logger)
	}

	return c
}

func newReadRetrier(maxRetries int, initial time.Duration, logger *zap.Logger) *retrier.Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}

	return retrier.New(
		retrier.WithMaxRetries(maxRetries),
		retrier.WithInitialInterval(initial),
		retrier.WithMaxInterval(5*time.Second),
		retrier.WithRetryIf(isRetryable),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Warn("retrying exchange read", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

func isRetryable(err error) bool {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable()
	}

	return false
}

// PlaceOrder submits a single order. It is never retried.
func (c *AsterClient) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, "place_order", http.MethodPost, pathOrder, orderParams(req))
	if err != nil {
		return nil, err
	}

	var result domain.OrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.DecodeError{Op: "place_order", Body: string(body), Err: err}
	}

	return &result, nil
}

// CancelOrder cancels by exchange order id or by client order id.
func (c *AsterClient) CancelOrder(ctx context.Context, symbol string, orderID int64, clientOrderID string) (*domain.OrderResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, domain.NewValidationError("symbol", "must not be empty")
	}
	if orderID <= 0 && clientOrderID == "" {
		return nil, domain.NewValidationError("orderId", "orderId or origClientOrderId is required")
	}

	params := Params{"symbol": strings.ToUpper(symbol)}
	if orderID > 0 {
		params["orderId"] = orderID
	}
	if clientOrderID != "" {
		params["origClientOrderId"] = clientOrderID
	}

	body, err := c.do(ctx, "cancel_order", http.MethodDelete, pathOrder, params)
	if err != nil {
		return nil, err
	}

	var result domain.OrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.DecodeError{Op: "cancel_order", Body: string(body), Err: err}
	}

	return &result, nil
}

// GetPositions returns position risk entries, optionally for one symbol.
func (c *AsterClient) GetPositions(ctx context.Context, symbol string) ([]domain.PositionRisk, error) {
	body, err := c.read(ctx, "positions", pathPositionRisk, symbolParams(symbol))
	if err != nil {
		return nil, err
	}

	return decodeList[domain.PositionRisk](c.logger, "positions", body)
}

// GetOpenOrders returns open orders, optionally for one symbol.
func (c *AsterClient) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OpenOrder, error) {
	body, err := c.read(ctx, "open_orders", pathOpenOrders, symbolParams(symbol))
	if err != nil {
		return nil, err
	}

	return decodeList[domain.OpenOrder](c.logger, "open_orders", body)
}

// GetAccountInfo returns the futures account summary.
func (c *AsterClient) GetAccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	body, err := c.read(ctx, "account", pathAccount, Params{})
	if err != nil {
		return nil, err
	}

	raw, err := unwrapObject("account", body)
	if err != nil {
		return nil, err
	}

	var info domain.AccountInfo
	if raw == nil {
		return &info, nil
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &domain.DecodeError{Op: "account", Body: string(body), Err: err}
	}

	return &info, nil
}

// SetLeverage changes the initial leverage for symbol.
func (c *AsterClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return domain.NewValidationError("leverage", "must be at least 1")
	}

	_, err := c.do(ctx, "leverage", http.MethodPost, pathLeverage, Params{
		"symbol":   strings.ToUpper(symbol),
		"leverage": leverage,
	})

	return err
}

func orderParams(req domain.OrderRequest) Params {
	positionSide := req.PositionSide
	if positionSide == "" {
		positionSide = domain.PositionSideBoth
	}

	params := Params{
		"symbol":       req.Symbol,
		"side":         string(req.Side),
		"type":         string(req.Type),
		"quantity":     req.Quantity,
		"positionSide": positionSide,
	}

	if req.ClientOrderID != "" {
		params["newClientOrderId"] = req.ClientOrderID
	}

	if req.Type == domain.OrderTypeLimit {
		params["price"] = req.Price.Decimal
		tif := req.TimeInForce
		if tif == "" {
			tif = domain.TimeInForceGTC
		}
		params["timeInForce"] = tif
	}

	if req.ReduceOnly {
		params["reduceOnly"] = true
	}
	if req.StopPrice.Valid {
		params["stopPrice"] = req.StopPrice.Decimal
	}

	return params
}

func symbolParams(symbol string) Params {
	params := Params{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}

	return params
}

func (c *AsterClient) read(ctx context.Context, op, path string, params Params) ([]byte, error) {
	return retrier.DoWithData(c.readRetrier, ctx, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, op, http.MethodGet, path, params)
	})
}

// do signs params and performs one HTTP round trip.
func (c *AsterClient) do(ctx context.Context, op, method, path string, params Params) (body []byte, err error) {
	started := time.Now()
	defer func() {
		c.metrics.ObserveAPICall(op, time.Since(started), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: op, Err: errors.Wrap(err, "rate limiter")}
	}

	envelope, err := c.signer.Sign(params)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: sign request", op)
	}

	values := url.Values{}
	for k, v := range envelope.Params {
		values.Set(k, v)
	}

	endpoint := c.baseURL + path

	var req *http.Request
	switch method {
	case http.MethodGet:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+values.Encode(), nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: 0, Err: errors.Wrap(err, "read response body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !json.Valid(body) {
		return nil, &domain.DecodeError{Op: op, Body: string(body), Err: errors.New("invalid json")}
	}

	c.logger.Debug("exchange call", zap.String("op", op), zap.Duration("took", time.Since(started)))

	return body, nil
}

// normalizeList accepts a bare JSON list or an object with a "data" list.
// Any other shape yields an empty list.
func normalizeList(op string, body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &domain.DecodeError{Op: op, Body: string(body), Err: err}
		}
		return items, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &domain.DecodeError{Op: op, Body: string(body), Err: err}
		}
		data := bytes.TrimSpace(envelope["data"])
		if len(data) == 0 || data[0] != '[' {
			return nil, nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, &domain.DecodeError{Op: op, Body: string(body), Err: err}
		}
		return items, nil
	default:
		return nil, nil
	}
}

// decodeList skips list elements that are not objects. An object that fails to decode
// is an error, so a malformed position is never mistaken for a flat one.
func decodeList[T any](logger *zap.Logger, op string, body []byte) ([]T, error) {
	items, err := normalizeList(op, body)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			logger.Warn("unexpected list element skipped", zap.String("op", op), zap.ByteString("element", trimmed))
			continue
		}

		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, &domain.DecodeError{Op: op, Body: string(item), Err: err}
		}
		out = append(out, v)
	}

	return out, nil
}

// unwrapObject returns the account object from {..}, {"data":{..}} or {"data":[{..}]}.
func unwrapObject(op string, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &domain.DecodeError{Op: op, Body: string(body), Err: err}
	}

	data, ok := envelope["data"]
	if !ok {
		return trimmed, nil
	}

	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '{':
		return data, nil
	case len(data) > 0 && data[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, &domain.DecodeError{Op: op, Body: string(body), Err: err}
		}
		if len(items) == 0 {
			return nil, nil
		}
		return items[0], nil
	default:
		return nil, nil
	}
}
