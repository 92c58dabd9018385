// Package backend is the console's client for the inventory REST backend.
// Every call forwards the caller's bearer token and request id, and every
// failure comes back as a classified *apperr.Error.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"equipment-inventory-console/internal/apperr"
	"equipment-inventory-console/internal/auth"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the console request id to the backend
const RequestIDHeader = "X-Request-ID"

// Call outcomes reported to the Observer
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeCancelled = "cancelled"
)

// Observer is notified after every backend call. endpoint is the route
// template, not the concrete path.
type Observer func(method, endpoint, outcome string, elapsed time.Duration)

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Retries applies to GET requests only; mutations are never retried
	Retries  int
	Logger   *zap.Logger
	Observer Observer
}

// Client talks to the backend REST API
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	observer Observer
}

// New creates a backend client
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryIdempotent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     httpClient,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// retryIdempotent retries GETs that failed in transport or with a transient status
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

type requestIDKey struct{}

// WithRequestID stores the request id forwarded as X-Request-ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the stored request id, or ""
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NewRequestID returns a fresh request id
func NewRequestID() string { return uuid.New().String() }

// call performs one request. endpoint is the route template used for logs
// and metrics; path is the concrete path. result may be nil.
func (c *Client) call(ctx context.Context, method, endpoint, path string, query url.Values, body, result any) error {
	reqID := RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = NewRequestID()
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, reqID)
	if token := auth.TokenFromContext(ctx); token != "" {
		req.SetAuthToken(token)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.observe(method, endpoint, OutcomeCancelled, elapsed)
			return apperr.Wrap(apperr.KindTransient, "REQUEST_CANCELLED", ctxErr, "%s %s cancelled", method, endpoint)
		}
		c.observe(method, endpoint, OutcomeTransport, elapsed)
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return apperr.Wrap(apperr.KindTransient, "BACKEND_UNREACHABLE", err, "%s %s failed", method, endpoint)
	}

	status := resp.StatusCode()
	if classified := apperr.FromStatus(status, resp.String()); classified != nil {
		c.observe(method, endpoint, classified.Kind.String(), elapsed)
		c.logger.Info("backend rejected request",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", reqID),
			zap.Int("status", status),
			zap.String("kind", classified.Kind.String()),
		)
		return classified
	}
	c.observe(method, endpoint, OutcomeOK, elapsed)
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("request_id", reqID),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)

	if result == nil || status == http.StatusNoContent || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return apperr.Wrap(apperr.KindTransient, "BACKEND_BAD_PAYLOAD", err, "decode %s %s response", method, endpoint)
	}
	return nil
}

func (c *Client) observe(method, endpoint, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, endpoint, outcome, elapsed)
	}
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, result any) error {
	return c.call(ctx, http.MethodGet, endpoint, path, query, nil, result)
}

func (c *Client) post(ctx context.Context, endpoint, path string, body, result any) error {
	return c.call(ctx, http.MethodPost, endpoint, path, nil, body, result)
}

func (c *Client) put(ctx context.Context, endpoint, path string, body, result any) error {
	return c.call(ctx, http.MethodPut, endpoint, path, nil, body, result)
}

func (c *Client) delete(ctx context.Context, endpoint, path string) error {
	return c.call(ctx, http.MethodDelete, endpoint, path, nil, nil, nil)
}

// listEnvelope covers the paginated shapes the backend may wrap lists in
type listEnvelope[T any] struct {
	Data    []T `json:"data"`
	Items   []T `json:"items"`
	Results []T `json:"results"`
}

// getList fetches a collection that is either a bare JSON array or an
// object wrapping it under data, items or results
func getList[T any](ctx context.Context, c *Client, endpoint, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.get(ctx, endpoint, path, query, &raw); err != nil {
		return nil, err
	}
	out, err := decodeList[T](raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "BACKEND_BAD_PAYLOAD", err, "decode GET %s response", endpoint)
	}
	return out, nil
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var out []T
			err := json.Unmarshal(raw, &out)
			return nonNil(out), err
		case '{':
			var env listEnvelope[T]
			if err := json.Unmarshal(raw, &env); err != nil {
				return nil, err
			}
			switch {
			case env.Data != nil:
				return env.Data, nil
			case env.Items != nil:
				return env.Items, nil
			default:
				return nonNil(env.Results), nil
			}
		case 'n':
			return []T{}, nil
		default:
			return nil, fmt.Errorf("unexpected list payload starting with %q", b)
		}
	}
	return []T{}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func idPath(format string, id int64) string { return fmt.Sprintf(format, id) }
