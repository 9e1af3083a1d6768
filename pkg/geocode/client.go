// Package geocode resolves UK postcodes to WGS84 coordinates via the
// postcodes.io API.
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/heritage-watch/heritage-cli/internal/resilience"
)

// DefaultBaseURL is the public postcodes.io endpoint.
const DefaultBaseURL = "https://api.postcodes.io"

// Client resolves postcodes to coordinates.
type Client interface {
	// Lookup resolves a single postcode. An unknown postcode returns a
	// Result with Matched=false, not an error.
	Lookup(ctx context.Context, postcode string) (*Result, error)

	// BulkLookup resolves multiple postcodes in one call. Results align
	// with the input order.
	BulkLookup(ctx context.Context, postcodes []string) ([]Result, error)

	// Reverse finds the nearest postcode to a coordinate.
	Reverse(ctx context.Context, lat, lng float64) (*Result, error)
}

// Result holds the geocoding output for a postcode.
type Result struct {
	Postcode  string
	Latitude  float64
	Longitude float64
	District  string // admin district, e.g. "Camden"
	Matched   bool
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the API endpoint (tests point this at a local server).
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry overrides the retry policy for transient API failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker overrides the breaker guarding the API. A run of failed
// calls opens it and further calls fail fast with ErrCircuitOpen.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *client) {
		c.breaker = cb
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a postcode geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizePostcode uppercases and strips interior whitespace so "nw3 1lt"
// and "NW31LT" hit the same record.
func NormalizePostcode(p string) string {
	return strings.ToUpper(strings.Join(strings.Fields(p), " "))
}
