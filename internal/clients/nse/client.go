// Package nse implements the exchange market-data feed client.
//
// The liveBonds endpoint refuses requests without the session cookies that
// a browser picks up on the site root, so the client primes a cookie jar
// with a handshake request before fetching data. Every failure mode maps
// to an error; callers downgrade errors to an empty quote set and keep the
// reference-only view usable.
package nse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/compositedge/bondmonitor/internal/domain"
)

// ErrFeedBlocked marks a request the exchange rejected (401/403), as
// opposed to a plain outage. The UI wording differs between the two.
var ErrFeedBlocked = errors.New("nse: feed request blocked")

const (
	liveBondsPath = "/api/liveBonds-traded-on-cm"
	primeTTL      = 5 * time.Minute
	userAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is an NSE live-bonds feed client with session-cookie handling.
type Client struct {
	client  *http.Client
	baseURL string
	series  string
	log     zerolog.Logger

	mu       sync.Mutex
	primedAt time.Time
}

// NewClient creates a new feed client. baseURL is the exchange site root
// (also the priming target); series is the instrument type query, e.g.
// "gsec". timeout bounds every request.
func NewClient(baseURL, series string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		baseURL: baseURL,
		series:  series,
		log:     log.With().Str("client", "nse").Logger(),
	}, nil
}

// GetLiveBonds fetches the current top-of-book rows for all traded bonds.
// The priming handshake is retried with exponential backoff; the data
// request itself is attempted once per call since the caller polls anyway.
func (c *Client) GetLiveBonds() ([]domain.Quote, error) {
	if err := c.ensurePrimed(); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + liveBondsPath + "?type=" + url.QueryEscape(c.series)

	body, err := c.get(reqURL)
	if err != nil {
		if errors.Is(err, ErrFeedBlocked) {
			// Session cookies went stale mid-TTL; force a fresh
			// handshake on the next call.
			c.invalidatePriming()
		}
		return nil, err
	}

	var result liveBondsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse liveBonds response: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(result.Data))
	for _, row := range result.Data {
		symbol := getString(row, fieldSymbol)
		if symbol == "" {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Symbol:          symbol,
			Series:          getString(row, fieldSeries),
			Bid:             getFloat64OrZero(row, fieldBid),
			BidQty:          getFloat64OrZero(row, fieldBidQty),
			Ask:             getFloat64OrZero(row, fieldAsk),
			AskQty:          getFloat64OrZero(row, fieldAskQty),
			LastTradedPrice: getFloat64OrZero(row, fieldLast),
			VWAP:            getFloat64OrZero(row, fieldAverage),
			Volume:          getFloat64OrZero(row, fieldVolume),
		})
	}

	c.log.Debug().Int("count", len(quotes)).Msg("Fetched live bond quotes")
	return quotes, nil
}

// ensurePrimed refreshes the session cookies when they are missing or
// stale. The handshake is retried because the exchange intermittently
// drops the first anonymous request.
func (c *Client) ensurePrimed() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.primedAt) < primeTTL {
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	err := backoff.Retry(func() error {
		_, err := c.get(c.baseURL)
		return err
	}, bo)
	if err != nil {
		return fmt.Errorf("priming handshake failed: %w", err)
	}

	c.primedAt = time.Now()
	return nil
}

func (c *Client) invalidatePriming() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primedAt = time.Time{}
}

// get performs one GET with browser-like headers and maps non-200
// responses to errors.
func (c *Client) get(reqURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrFeedBlocked, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("feed returned empty body")
	}

	return body, nil
}

// Helper functions to safely extract values from loosely-typed feed rows.

func getFloat64OrZero(m map[string]interface{}, key string) float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
				return f
			}
		}
	}
	return 0
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
