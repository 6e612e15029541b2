package orders

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

	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/types"
)

const (
	defaultTimeout           = 15 * time.Second
	errorBodyReadLimit int64 = 2048
	ordersPath               = "/orders"
	idempotencyHeader        = "Idempotency-Key"
)

// SubmitResult is the normalized response of a successful order submission.
type SubmitResult struct {
	OrderID             string
	OrderReference      string
	VerificationCode    string
	TotalAmount         int64
	PaymentURL          string
	PaymentInstructions string
}

// RemoteOrder is the subset of the remote order record the storefront tracks.
type RemoteOrder struct {
	OrderID        string
	OrderReference string
	Status         string
	TotalAmount    int64
}

type observer interface {
	ObserveUpstream(service, op string, d time.Duration)
}

// Client talks to the remote order API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    observer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records request latency.
func WithMetrics(m observer) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds an order API client for baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("orders base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// wireOrder accepts the shapes the order API has used: fields at the top
// level, or nested under "order" or "data".
type wireOrder struct {
	Success             *bool      `json:"success"`
	Message             string     `json:"message"`
	ID                  string     `json:"id"`
	MongoID             string     `json:"_id"`
	OrderID             string     `json:"orderId"`
	OrderReference      string     `json:"orderReference"`
	Reference           string     `json:"reference"`
	VerificationCode    string     `json:"verificationCode"`
	TotalAmount         float64    `json:"totalAmount"`
	Status              string     `json:"status"`
	PaymentURL          string     `json:"paymentUrl"`
	AuthorizationURL    string     `json:"authorizationUrl"`
	PaymentInstructions string     `json:"paymentInstructions"`
	Order               *wireOrder `json:"order"`
	Data                *wireOrder `json:"data"`
}

func (w *wireOrder) flatten() *wireOrder {
	out := *w
	for _, nested := range []*wireOrder{w.Order, w.Data} {
		if nested == nil {
			continue
		}
		n := nested.flatten()
		out.ID = firstNonEmpty(out.ID, n.ID)
		out.MongoID = firstNonEmpty(out.MongoID, n.MongoID)
		out.OrderID = firstNonEmpty(out.OrderID, n.OrderID)
		out.OrderReference = firstNonEmpty(out.OrderReference, n.OrderReference)
		out.Reference = firstNonEmpty(out.Reference, n.Reference)
		out.VerificationCode = firstNonEmpty(out.VerificationCode, n.VerificationCode)
		out.Status = firstNonEmpty(out.Status, n.Status)
		out.PaymentURL = firstNonEmpty(out.PaymentURL, n.PaymentURL)
		out.AuthorizationURL = firstNonEmpty(out.AuthorizationURL, n.AuthorizationURL)
		out.PaymentInstructions = firstNonEmpty(out.PaymentInstructions, n.PaymentInstructions)
		if out.TotalAmount == 0 {
			out.TotalAmount = n.TotalAmount
		}
	}
	return &out
}

func (w *wireOrder) id() string {
	return firstNonEmpty(w.MongoID, w.ID, w.OrderID)
}

// Submit posts the payload and normalizes the response. idempotencyKey is
// forwarded so a retried submission does not place a second order. A body
// reporting success=false is treated as a failed submission.
func (c *Client) Submit(ctx context.Context, idempotencyKey string, payload types.CheckoutPayload) (SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order payload")
	}

	var header http.Header
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		header = http.Header{idempotencyHeader: []string{key}}
	}
	var wire wireOrder
	if err := c.do(ctx, http.MethodPost, ordersPath, body, header, "submit", &wire); err != nil {
		return SubmitResult{}, err
	}
	if wire.Success != nil && !*wire.Success {
		msg := strings.TrimSpace(wire.Message)
		if msg == "" {
			msg = "order service rejected the order"
		}
		return SubmitResult{}, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	flat := wire.flatten()
	result := SubmitResult{
		OrderID:             flat.id(),
		OrderReference:      firstNonEmpty(flat.OrderReference, flat.Reference),
		VerificationCode:    flat.VerificationCode,
		TotalAmount:         int64(flat.TotalAmount),
		PaymentURL:          firstNonEmpty(flat.PaymentURL, flat.AuthorizationURL),
		PaymentInstructions: flat.PaymentInstructions,
	}
	if result.TotalAmount == 0 {
		result.TotalAmount = payload.TotalAmount
	}
	return result, nil
}

// Fetch loads a single order by its upstream id.
func (c *Client) Fetch(ctx context.Context, upstreamID string) (RemoteOrder, error) {
	upstreamID = strings.TrimSpace(upstreamID)
	if upstreamID == "" {
		return RemoteOrder{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var wire wireOrder
	if err := c.do(ctx, http.MethodGet, ordersPath+"/"+url.PathEscape(upstreamID), nil, nil, "fetch", &wire); err != nil {
		return RemoteOrder{}, err
	}
	flat := wire.flatten()
	return RemoteOrder{
		OrderID:        flat.id(),
		OrderReference: firstNonEmpty(flat.OrderReference, flat.Reference),
		Status:         flat.Status,
		TotalAmount:    int64(flat.TotalAmount),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header, op string, dst any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build order request")
	}
	req.Header.Set("Accept", "application/json")
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveUpstream("orders", op, time.Since(start))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute order request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		cause := fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, "order not found upstream")
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "order service rejected the request")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "order service unavailable")
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order response")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
