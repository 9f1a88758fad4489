// Package ozon is the anti-corruption layer between sellerpilot and the Ozon
// Seller API. All outbound calls go through one Client per worker invocation:
// the shared rate limiter is consulted before every request, failures are
// returned as values (never panics, never Go errors for HTTP-level problems)
// and classified by keyword, and a short-lived log of quota errors lets the
// workers tell an empty queue apart from a spent daily quota.
package ozon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sellerpilot/internal/ratelimit"
	"sellerpilot/internal/types"
)

// DefaultBaseURL is the production Seller API endpoint.
const DefaultBaseURL = "https://api-seller.ozon.ru"

const (
	endpointActions           = "/v1/actions"
	endpointActionProducts    = "/v1/actions/products"
	endpointActionsDeactivate = "/v1/actions/products/deactivate"
	endpointProductList       = "/v3/product/list"
	endpointProductUnarchive  = "/v1/product/unarchive"
)

const (
	// MaxBatchSize is the provider's cap on product IDs per mutating call.
	// Larger inputs are rejected locally; the network is never touched.
	MaxBatchSize = 100
	// MaxPageSize is the provider's cap on listing page size.
	MaxPageSize = 1000
)

// CallResult is the uniform outcome of one marketplace call. Success carries
// the raw response under Data; failure carries the error text the workers
// classify. HTTP-level failures are values, never Go errors.
type CallResult struct {
	Success    bool
	StatusCode int
	ErrorText  string
	Data       json.RawMessage
}

// Action is one promotional campaign as listed by the provider.
type Action struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ProductItem is one product entry from a listing. The provider is
// inconsistent about the identifier field, so both spellings are kept and
// resolved through ProductID.
type ProductItem struct {
	ProductIDField json.Number `json:"product_id"`
	IDField        json.Number `json:"id"`
}

// ProductID resolves the item's numeric identifier, preferring product_id
// over id. ok is false when neither field parses.
func (p ProductItem) ProductID() (int64, bool) {
	for _, field := range []json.Number{p.ProductIDField, p.IDField} {
		if field == "" {
			continue
		}
		if id, err := field.Int64(); err == nil {
			return id, true
		}
	}
	return 0, false
}

// listEnvelope is the provider's {result: {items|products: [...]}} shape.
type listEnvelope struct {
	Result struct {
		Items    []ProductItem `json:"items"`
		Products []ProductItem `json:"products"`
	} `json:"result"`
}

// actionsEnvelope is the {result: [...]} shape of the actions listing.
type actionsEnvelope struct {
	Result []Action `json:"result"`
}

// Items decodes the listing payload, accepting either the items or the
// products field name. Returns nil on a failed call or an unparseable body.
func (r *CallResult) Items() []ProductItem {
	if !r.Success || len(r.Data) == 0 {
		return nil
	}
	var env listEnvelope
	if err := json.Unmarshal(r.Data, &env); err != nil {
		return nil
	}
	if len(env.Result.Items) > 0 {
		return env.Result.Items
	}
	return env.Result.Products
}

// Actions decodes the actions listing payload.
func (r *CallResult) Actions() []Action {
	if !r.Success || len(r.Data) == 0 {
		return nil
	}
	var env actionsEnvelope
	if err := json.Unmarshal(r.Data, &env); err != nil {
		return nil
	}
	return env.Result
}

// AppError converts a failed call into the application error taxonomy, using
// the keyword classification to pick the code. Returns nil for a successful
// result.
func (r *CallResult) AppError() error {
	if r.Success {
		return nil
	}
	code := types.ErrCodeUpstreamFailure
	switch ClassifyError(r.ErrorText) {
	case ErrKindQuota:
		code = types.ErrCodeUpstreamQuota
	case ErrKindAccessDenied:
		code = types.ErrCodeUpstreamForbidden
	}
	return types.NewAppError(code, r.ErrorText, nil)
}

// ProductIDs extracts the numeric identifiers from items, silently skipping
// entries that fail to parse.
func ProductIDs(items []ProductItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if id, ok := item.ProductID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClientConfig holds everything needed to build a Client for one store.
type ClientConfig struct {
	ClientID string
	APIKey   types.SecretString
	BaseURL  string // defaults to DefaultBaseURL
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
	MockMode bool // serve canned responses, no network
	Logger   *slog.Logger
}

// Client performs authenticated Seller API calls for one store, one call at a
// time. Callers must pre-chunk batches; the client enforces the provider's
// batch and page caps locally. One Client is built per worker invocation so
// the quota-error memory starts fresh each run.
type Client struct {
	clientID string
	limiter  *ratelimit.Limiter
	tr       transport
	logger   *slog.Logger

	limits *limitLog
	now    func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClock overrides the clock used for the quota-error memory. For tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// withTransport swaps the transport. For tests.
func withTransport(tr transport) ClientOption {
	return func(c *Client) { c.tr = tr }
}

// NewClient builds a Client. Missing credentials are the only error path;
// everything that can go wrong at call time is reported through CallResult.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.DefaultMaxRequests, ratelimit.DefaultWindow, logger)
	}

	c := &Client{
		clientID: cfg.ClientID,
		limiter:  cfg.Limiter,
		logger:   logger,
		limits:   &limitLog{},
		now:      time.Now,
	}

	if cfg.MockMode {
		c.tr = newMockTransport()
		logger.Info("marketplace client running in mock mode")
	} else {
		if cfg.ClientID == "" || cfg.APIKey.IsZero() {
			return nil, types.NewAppError(types.ErrCodeClientMissingCreds,
				"client_id and api_key are required", nil)
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.tr = newHTTPTransport(baseURL, cfg.ClientID, cfg.APIKey, timeout)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call applies the rate limiter, delegates to the transport and logs the
// outcome. A cancelled context surfaces as an ordinary failed CallResult so
// worker control flow stays uniform.
func (c *Client) call(ctx context.Context, method, endpoint string, body any) *CallResult {
	if err := c.limiter.Acquire(ctx, c.clientID); err != nil {
		return &CallResult{ErrorText: fmt.Sprintf("rate limiter wait aborted: %v", err)}
	}

	start := c.now()
	res := c.tr.roundTrip(ctx, method, endpoint, body)

	attrs := []any{
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", c.now().Sub(start)),
	}
	if res.Success {
		c.logger.Debug("marketplace call", attrs...)
	} else {
		c.logger.Warn("marketplace call failed", append(attrs, slog.String("error", res.ErrorText))...)
	}
	return res
}

// ListPromotionActions lists all promotional campaigns for the store.
func (c *Client) ListPromotionActions(ctx context.Context) *CallResult {
	return c.call(ctx, "GET", endpointActions, nil)
}

// ListActionProducts lists products enrolled in one campaign. limit is
// clamped to MaxPageSize; lastID is the pagination cursor ("" for the first
// page).
func (c *Client) ListActionProducts(ctx context.Context, actionID int64, limit int, lastID string) *CallResult {
	body := map[string]any{
		"action_id": actionID,
		"limit":     clampPageSize(limit),
	}
	if lastID != "" {
		body["last_id"] = lastID
	}
	return c.call(ctx, "POST", endpointActionProducts, body)
}

// RemoveProductsFromAction removes up to MaxBatchSize products from the
// campaign. Oversized batches are rejected locally without a network call.
func (c *Client) RemoveProductsFromAction(ctx context.Context, actionID int64, productIDs []int64) *CallResult {
	if len(productIDs) > MaxBatchSize {
		return &CallResult{ErrorText: fmt.Sprintf("at most %d products per request, got %d", MaxBatchSize, len(productIDs))}
	}
	body := map[string]any{
		"action_id":   actionID,
		"product_ids": productIDs,
	}
	return c.call(ctx, "POST", endpointActionsDeactivate, body)
}

// ListArchivedProducts lists archived products regardless of how they were
// archived.
func (c *Client) ListArchivedProducts(ctx context.Context, limit int, lastID string) *CallResult {
	body := map[string]any{
		"filter": map[string]any{"visibility": "ARCHIVED"},
		"limit":  clampPageSize(limit),
	}
	if lastID != "" {
		body["last_id"] = lastID
	}
	return c.call(ctx, "POST", endpointProductList, body)
}

// ListAutoArchivedProducts lists only products the marketplace archived
// automatically.
func (c *Client) ListAutoArchivedProducts(ctx context.Context, limit int, lastID string) *CallResult {
	body := map[string]any{
		"filter": map[string]any{
			"visibility":      "ARCHIVED",
			"is_autoarchived": true,
		},
		"limit": clampPageSize(limit),
	}
	if lastID != "" {
		body["last_id"] = lastID
	}
	return c.call(ctx, "POST", endpointProductList, body)
}

// UnarchiveProducts restores up to MaxBatchSize archived products. Empty and
// oversized batches are rejected locally without a network call. The provider
// expects the identifiers as strings on this endpoint.
func (c *Client) UnarchiveProducts(ctx context.Context, productIDs []int64) *CallResult {
	if len(productIDs) == 0 {
		return &CallResult{ErrorText: "empty product list for unarchive"}
	}
	if len(productIDs) > MaxBatchSize {
		return &CallResult{ErrorText: fmt.Sprintf("at most %d products per request, got %d", MaxBatchSize, len(productIDs))}
	}

	strIDs := make([]string, len(productIDs))
	for i, id := range productIDs {
		strIDs[i] = fmt.Sprintf("%d", id)
	}

	c.logger.Info("requesting unarchive",
		slog.Int("count", len(productIDs)),
		slog.Any("product_ids", previewIDs(productIDs)),
	)
	return c.call(ctx, "POST", endpointProductUnarchive, map[string]any{"product_id": strIDs})
}

// TestConnection issues a minimal product listing to verify the credentials.
// A failure comes back as an AppError carrying the upstream classification.
func (c *Client) TestConnection(ctx context.Context) error {
	res := c.call(ctx, "POST", endpointProductList, map[string]any{
		"filter": map[string]any{},
		"limit":  1,
	})
	if !res.Success {
		c.logger.Error("connection test failed",
			slog.Int("status", res.StatusCode),
			slog.String("error", res.ErrorText),
		)
		return res.AppError()
	}
	c.logger.Info("connection test succeeded", slog.Int("status", res.StatusCode))
	return nil
}

// RecordLimitError notes that a quota error was just observed.
func (c *Client) RecordLimitError() {
	total := c.limits.record(c.now())
	c.logger.Info("recorded quota error", slog.Int("recorded", total))
}

// HasRecentLimitError reports whether a quota error was recorded within
// DefaultLimitWindow.
func (c *Client) HasRecentLimitError() bool {
	return c.HasRecentLimitErrorWithin(DefaultLimitWindow)
}

// HasRecentLimitErrorWithin reports whether a quota error was recorded within
// the given window, pruning older entries as a side effect.
func (c *Client) HasRecentLimitErrorWithin(window time.Duration) bool {
	return c.limits.hasRecent(c.now(), window)
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// previewIDs keeps unarchive log lines short on large batches.
func previewIDs(ids []int64) []int64 {
	if len(ids) <= 5 {
		return ids
	}
	return ids[:5]
}
