package nse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"optionpulse/internal/domain/models"
	drepo "optionpulse/internal/domain/repository"
	"optionpulse/internal/service/marketcal"
	apphttp "optionpulse/pkg/http"
	applogger "optionpulse/pkg/logger"
)

const primeInterval = 10 * time.Minute

// Hours gates fetches on exchange hours. Nil disables the pre-check.
type Hours interface {
	IsOpen(t time.Time) bool
}

var _ Hours = (*marketcal.Checker)(nil)

// Client implements a ChainSource backed by the exchange's public chain
// endpoint. The endpoint requires a session cookie set by the landing page,
// so the client primes its cookie jar before the first fetch and refreshes
// it periodically.
type Client struct {
	baseURL   string
	primeURL  string
	userAgent string
	hours     Hours
	httpc     *apphttp.Client
	log       *applogger.Logger

	mu         sync.Mutex
	lastPrimed time.Time
}

// Config holds upstream endpoint settings.
type Config struct {
	BaseURL   string
	PrimeURL  string
	UserAgent string
	Timeout   time.Duration
}

// New creates a new chain source.
func New(cfg Config, hours Hours, log *applogger.Logger) drepo.ChainSource {
	return &Client{
		baseURL:   cfg.BaseURL,
		primeURL:  cfg.PrimeURL,
		userAgent: cfg.UserAgent,
		hours:     hours,
		log:       log,
		httpc: apphttp.NewClient(
			apphttp.WithTimeout(cfg.Timeout),
			apphttp.WithCookieJar(),
		),
	}
}

// Fetch retrieves one option-chain snapshot for symbol. Failures come back
// as tagged models.Error values so the collector can branch on them.
func (c *Client) Fetch(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if c.hours != nil && !c.hours.IsOpen(time.Now()) {
		return nil, models.MarketClosed("exchange is closed")
	}

	if err := c.prime(ctx); err != nil {
		return nil, err
	}

	resp, err := c.httpc.SendRequest(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: map[string][]string{"symbol": {symbol}},
		Headers:     c.headers(),
	})
	if err != nil {
		return nil, models.NetworkUnavailable("chain fetch failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Upstream blocks stale sessions with 403; force a re-prime next call.
		c.mu.Lock()
		c.lastPrimed = time.Time{}
		c.mu.Unlock()
		return nil, models.RateLimited(fmt.Sprintf("upstream refused request: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, models.RateLimited("upstream throttled request")
	default:
		return nil, models.NetworkUnavailable(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NetworkUnavailable("read chain body", err)
	}

	snap, err := ParseChain(body, symbol)
	if err != nil {
		return nil, err
	}
	c.log.Debug("chain fetched",
		applogger.String("symbol", symbol),
		applogger.Int("strikes", len(snap.Strikes)),
		applogger.Float64("spot", snap.Spot))
	return snap, nil
}

// prime hits the landing page so the jar holds a fresh session cookie.
func (c *Client) prime(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastPrimed) < primeInterval {
		return nil
	}

	resp, err := c.httpc.SendRequest(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodGet,
		URL:     c.primeURL,
		Headers: c.headers(),
	})
	if err != nil {
		return models.NetworkUnavailable("session prime failed", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	c.lastPrimed = time.Now()
	return nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"User-Agent":      c.userAgent,
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
	}
}
