// Package source downloads and parses the Broadcastify feed listings.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/pkg/models"
)

// ErrUnexpectedStatus is returned for non-2xx listing responses.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

const maxBodyBytes = 8 << 20

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_source_requests_total",
			Help: "Listing page requests by listing and result.",
		},
		[]string{"listing", "result"},
	)
	recordsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_source_records_dropped_total",
			Help: "Listing records dropped because a field did not parse.",
		},
		[]string{"listing"},
	)
	breakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedwatch_source_breaker_open",
			Help: "1 while the listing circuit breaker is open.",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, recordsDropped, breakerOpen)
}

// Client fetches the top listing and, optionally, one state listing.
// Requests are paced by a token bucket and guarded by a circuit breaker so a
// failing site is not hammered every cycle.
type Client struct {
	cfg     config.SourceConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]models.FeedSnapshot]
	logger  *zap.Logger
}

// NewClient creates a listing client from the source configuration.
func NewClient(cfg config.SourceConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		logger:  logger,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 1
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]models.FeedSnapshot](gobreaker.Settings{
		Name:        "broadcastify",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Shutdown is not the site's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				breakerOpen.Set(1)
			} else {
				breakerOpen.Set(0)
			}
			c.logger.Warn("listing circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// Fetch returns the merged, deduplicated feed list. A stateID of 0 fetches
// only the top listing. Entries from the top listing win on ID collisions.
func (c *Client) Fetch(ctx context.Context, stateID int) ([]models.FeedSnapshot, error) {
	feeds, err := c.breaker.Execute(func() ([]models.FeedSnapshot, error) {
		top, err := c.fetchListing(ctx, c.cfg.TopURL, ListingTop)
		if err != nil {
			return nil, fmt.Errorf("parse top feeds: %w", err)
		}
		if stateID <= 0 {
			return top, nil
		}

		state, err := c.fetchListing(ctx, fmt.Sprintf(c.cfg.StateURL, stateID), ListingState)
		if err != nil {
			return nil, fmt.Errorf("parse state feeds: %w", err)
		}
		return Merge(top, state), nil
	})
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

func (c *Client) fetchListing(ctx context.Context, url string, listing Listing) ([]models.FeedSnapshot, error) {
	body, err := c.download(ctx, url)
	if err != nil {
		requestsTotal.WithLabelValues(listing.String(), "http_error").Inc()
		return nil, err
	}

	res, err := Parse(body, listing)
	if res.Dropped > 0 {
		recordsDropped.WithLabelValues(listing.String()).Add(float64(res.Dropped))
		c.logger.Debug("dropped malformed listing records",
			zap.String("listing", listing.String()),
			zap.Int("dropped", res.Dropped),
		)
	}
	if err != nil {
		requestsTotal.WithLabelValues(listing.String(), "parse_error").Inc()
		return nil, err
	}

	requestsTotal.WithLabelValues(listing.String(), "ok").Inc()
	return res.Feeds, nil
}

func (c *Client) download(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", url, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse
		return "", fmt.Errorf("http get %s: %w: %d", url, ErrUnexpectedStatus, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(b), nil
}
