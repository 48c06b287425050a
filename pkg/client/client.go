// Package client provides the Shopify Admin GraphQL client with cost-based
// throttling, retry and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Admin API client operations.
var (
	adminRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_admin_requests_total",
		Help: "Total Admin API requests by operation type and status",
	}, []string{"operation", "status"})

	adminRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopify_admin_request_duration_seconds",
		Help:    "Admin API request duration in seconds by operation type",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	adminErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_admin_errors_total",
		Help: "Total Admin API errors by class",
	}, []string{"class"})

	adminRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_admin_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	adminRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopify_admin_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	adminRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_admin_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-10"

// defaultQueryCost is the budget reserved for a query whose cost is not known yet.
const defaultQueryCost = 50

// Client is the Admin GraphQL API client.
type Client struct {
	httpClient *http.Client
	throttle   *ratelimit.Tracker
	config     Config
	endpoint   string
	logger     zerolog.Logger

	// requested cost of each query text, learned from previous responses
	costs sync.Map
}

// Config holds the client configuration.
type Config struct {
	// Redis shares throttle state between processes (optional)
	Redis *redis.Client

	// Shop domain, e.g. "gold-house.myshopify.com" (REQUIRED)
	ShopDomain string

	// Admin API access token (REQUIRED)
	AccessToken string

	// Admin API version, e.g. "2024-10"
	APIVersion string

	// User-Agent header
	UserAgent string

	// Endpoint overrides the URL derived from ShopDomain and APIVersion (tests, proxies)
	Endpoint string

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry
	MaxAttempts    int           // 0 keeps the per-class default
	InitialBackoff time.Duration // 0 keeps the per-class default
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(shopDomain, accessToken string) Config {
	return Config{
		ShopDomain:  shopDomain,
		AccessToken: accessToken,
		APIVersion:  DefaultAPIVersion,
		UserAgent:   "gold-repricer/0.1.0",
		Timeout:     30 * time.Second,
	}
}

// New creates a new Admin API client.
func New(cfg Config) (*Client, error) {
	if cfg.ShopDomain == "" {
		return nil, fmt.Errorf("shop domain is required")
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}

	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max_attempts must be >= 0 (got %d)", cfg.MaxAttempts)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		shop := strings.TrimSuffix(strings.TrimPrefix(cfg.ShopDomain, "https://"), "/")
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, cfg.APIVersion)
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		throttle: ratelimit.NewTracker(cfg.Redis, cfg.ShopDomain, logger),
		config:   cfg,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     GraphQLErrors   `json:"errors"`
	Extensions struct {
		Cost *ratelimit.Cost `json:"cost"`
	} `json:"extensions"`
}

// Do executes query with variables and decodes the "data" member into out.
// out may be nil when the caller only needs success or failure.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	operation := operationType(query)

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return retryWithBackoff(ctx, func() error {
		if err := c.throttle.Wait(ctx, c.expectedCost(query)); err != nil {
			return fmt.Errorf("throttle wait: %w", err)
		}
		return c.doOnce(ctx, operation, query, body, out)
	}, ClassOf, c.retryConfig)
}

func (c *Client) doOnce(ctx context.Context, operation, query string, body []byte, out any) error {
	startTime := time.Now()
	defer func() {
		adminRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &APIError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.AccessToken)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("endpoint", c.endpoint).
		Msg("Executing Admin API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("HTTP request failed")
		return c.fail(operation, "network_error", &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		})
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(operation, "network_error", &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		})
	}

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg("Admin API request error")
		return c.fail(operation, status, apiErr)
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return c.fail(operation, status, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassGraphQL,
			Message:    "decode response",
			Err:        err,
		})
	}

	if cost := envelope.Extensions.Cost; cost != nil {
		if cost.RequestedQueryCost > 0 {
			c.costs.Store(query, cost.RequestedQueryCost)
		}
		if err := c.throttle.UpdateFromCost(ctx, *cost); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update throttle state")
		}
	}

	if len(envelope.Errors) > 0 {
		class := ErrorClassGraphQL
		if envelope.Errors.Throttled() {
			class = ErrorClassRateLimit
		}
		return c.fail(operation, status, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    "graphql errors",
			Err:        envelope.Errors,
		})
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return c.fail(operation, status, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassGraphQL,
				Message:    "decode data",
				Err:        err,
			})
		}
	}

	adminRequestsTotal.WithLabelValues(operation, status).Inc()
	return nil
}

func (c *Client) fail(operation, status string, apiErr *APIError) error {
	adminErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
	adminRequestsTotal.WithLabelValues(operation, status).Inc()
	return apiErr
}

// retryConfig applies the configured overrides to the per-class policy.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxAttempts > 0 {
		rc.MaxAttempts = c.config.MaxAttempts
	}
	if c.config.InitialBackoff > 0 {
		rc.InitialBackoff = c.config.InitialBackoff
		if rc.MaxBackoff < rc.InitialBackoff {
			rc.MaxBackoff = rc.InitialBackoff
		}
	}
	return rc
}

func (c *Client) expectedCost(query string) float64 {
	if cost, ok := c.costs.Load(query); ok {
		return cost.(float64)
	}
	return defaultQueryCost
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// parseRetryAfter reads a Retry-After header given in (possibly fractional) seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// operationType returns "query" or "mutation" for metric labels.
func operationType(query string) string {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimPrefix(q, "#graphql"))
	if strings.HasPrefix(q, "mutation") {
		return "mutation"
	}
	return "query"
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Throttle returns the cost bucket tracker (for testing).
func (c *Client) Throttle() *ratelimit.Tracker {
	return c.throttle
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
