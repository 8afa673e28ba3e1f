// Package pumpfun is a client for the pump.fun frontend API.
package pumpfun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://frontend-api.pump.fun"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRPS         = 5.0
	DefaultBurst       = 5
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultOrigin      = "https://pump.fun"
	defaultReferer     = "https://pump.fun/"
)

// ErrNotFound is returned when the API has no record for a mint.
var ErrNotFound = errors.New("pumpfun: coin not found")

// Coin is a token record as returned by the API.
type Coin struct {
	Mint             string  `json:"mint"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Description      string  `json:"description"`
	ImageURI         string  `json:"image_uri"`
	MetadataURI      string  `json:"metadata_uri"`
	USDMarketCap     float64 `json:"usd_market_cap"`
	MarketCap        float64 `json:"market_cap"` // SOL
	TotalVolume      float64 `json:"total_volume"`
	Complete         bool    `json:"complete"`
	CreatedTimestamp int64   `json:"created_timestamp"` // unix ms
}

// CreatedAt converts the creation timestamp.
func (c Coin) CreatedAt() time.Time {
	if c.CreatedTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.CreatedTimestamp)
}

// SearchParams selects a page of the coin listing.
type SearchParams struct {
	Offset      int
	Limit       int
	Sort        string // e.g. created_timestamp
	Order       string // ASC | DESC
	Term        string
	IncludeNSFW bool
}

// DefaultSearchParams mirrors the listing query used to look up a token by name.
func DefaultSearchParams(term string) SearchParams {
	return SearchParams{
		Offset:      0,
		Limit:       10,
		Sort:        "created_timestamp",
		Order:       "DESC",
		Term:        term,
		IncludeNSFW: true,
	}
}

// Client calls the pump.fun frontend API with rate limiting, retries and a circuit breaker.
type Client struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	userAgent   string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithRateLimit sets the request rate. Non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for baseURL. Empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		userAgent:   DefaultUserAgent,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker("pumpfun")
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	// A missing coin is an answer, not an outage.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Coin fetches single-token info for mint.
func (c *Client) Coin(ctx context.Context, mint string) (*Coin, error) {
	if mint == "" {
		return nil, fmt.Errorf("pumpfun: empty mint")
	}
	var coin Coin
	if err := c.get(ctx, "/coins/"+url.PathEscape(mint), nil, &coin); err != nil {
		return nil, err
	}
	if coin.Mint == "" {
		return nil, ErrNotFound
	}
	return &coin, nil
}

// Search lists coins matching the params.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Coin, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(p.Offset))
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	q.Set("limit", strconv.Itoa(limit))
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Order != "" {
		q.Set("order", p.Order)
	}
	q.Set("include_nsfw", strconv.FormatBool(p.IncludeNSFW))
	if p.Term != "" {
		q.Set("searchTerm", p.Term)
	}

	var coins []Coin
	if err := c.get(ctx, "/coins", q, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// get performs a GET with retries and exponential backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		body, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, endpoint)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return fmt.Errorf("pumpfun unavailable: %w", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if err := json.Unmarshal(body.([]byte), result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Origin", defaultOrigin)
	req.Header.Set("Referer", defaultReferer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited (429)")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	// The API answers unknown mints with 200 and an empty body.
	if len(strings.TrimSpace(string(respBody))) == 0 {
		return nil, ErrNotFound
	}
	return respBody, nil
}
