// Package subscribers reads the channel subscriber count shown on the about
// page. The read never fails from the caller's point of view: any problem is
// logged and replaced with Fallback.
package subscribers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// Fallback is the last known subscriber count.
	Fallback = 81600
	CacheTTL = 24 * time.Hour

	// Path of the companion endpoint, relative to the site base URL.
	Path = "/api/youtube"

	cacheKey = "subscribers"
)

// FallbackTotal counts reads answered with Fallback.
var FallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "portfolio",
	Name:      "subscriber_fetch_fallback_total",
	Help:      "Subscriber count reads that fell back to the hardcoded value.",
})

// Payload is the JSON body of the companion endpoint. Subscribers may be a
// number or a string.
type Payload struct {
	Subscribers json.RawMessage `json:"subscribers"`
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   *expirable.LRU[string, int]
	logger  *zap.Logger
}

// NewClient builds a client reading from baseURL + Path. Successful reads are
// cached for CacheTTL.
func NewClient(baseURL string, hc *http.Client, logger *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		cache:   expirable.NewLRU[string, int](1, nil, CacheTTL),
		logger:  logger,
	}
}

// Count returns the subscriber count, or Fallback when it cannot be read.
func (c *Client) Count(ctx context.Context) int {
	if n, ok := c.cache.Get(cacheKey); ok {
		return n
	}
	n, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("Error fetching subscriber count, using fallback",
			zap.Error(err), zap.Int("fallback", Fallback))
		FallbackTotal.Inc()
		return Fallback
	}
	c.cache.Add(cacheKey, n)
	return n
}

func (c *Client) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+Path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	var p Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return 0, fmt.Errorf("decode subscriber payload: %w", err)
	}
	return ParseCount(p.Subscribers), nil
}

// ParseCount reads the leading integer of a JSON number or string. Anything
// without leading digits counts as zero.
func ParseCount(raw json.RawMessage) int {
	s := string(bytes.TrimSpace(raw))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	s = strings.TrimSpace(s)

	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
