package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/infrastructure/telemetry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "pms-billing"
	maxBodyBytes     = 4 << 20
)

// Client talks to the property-management backend. It implements the
// repository and gateway ports of the billing domain.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *telemetry.Metrics
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records backend round trips on m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the fallback logger used when the request context carries none
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a backend client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalised backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call
type request struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      any
	headers   map[string]string
}

// do performs the request and returns the raw response body. A call succeeds
// only with HTTP 200 or 204 and a payload whose success flag is not false.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	ctx, span := telemetry.StartBackendSpan(ctx, r.operation, r.method, r.path)
	defer span.End()

	start := time.Now()
	body, err := c.roundTrip(ctx, r)
	c.metrics.ObserveBackendRequest(r.operation, telemetry.Outcome(err), time.Since(start))

	log := logger.FromContextOr(ctx, c.logger)
	if err != nil {
		telemetry.RecordError(span, err)
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			span.SetAttributes(telemetry.AttrHTTPStatus.Int(reqErr.StatusCode))
		}
		log.Warn("Backend request failed",
			zap.String("operation", r.operation),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.SetOK(span)
	log.Debug("Backend request completed",
		zap.String("operation", r.operation),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Duration("duration", time.Since(start)),
	)
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) ([]byte, error) {
	fail := func(status int, msg string, body []byte, cause error) error {
		return &RequestError{
			Operation:  r.operation,
			Method:     r.method,
			Path:       r.path,
			StatusCode: status,
			Message:    msg,
			Body:       body,
			Err:        cause,
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fail(0, "", nil, fmt.Errorf("rate limiter: %w", err))
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("backend %s: encode body: %w", r.operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("backend %s: build request: %w", r.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(0, "", nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(resp.StatusCode, "", nil, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, fail(resp.StatusCode, backendMessage(body), body, nil)
	}
	if resp.StatusCode == http.StatusOK && explicitFailure(body) {
		return nil, fail(resp.StatusCode, backendMessage(body), body, nil)
	}
	return body, nil
}

// explicitFailure reports whether a JSON object payload carries success=false
func explicitFailure(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var env struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return false
	}
	return env.Success != nil && !*env.Success
}

// backendMessage extracts a human-readable message from an error payload
func backendMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}
