// Package riak checks key existence through the Riak HTTP interface.
package riak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sqriak/sqriak/internal/config"
)

// ErrBreakerOpen is returned while the circuit breaker rejects lookups.
var ErrBreakerOpen = errors.New("riak: circuit breaker open")

// maxDrain bounds how much of a response body is read to keep the
// connection reusable.
const maxDrain = 64 << 10

// StatusError reports an answer other than 200 or 404.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("riak: unexpected status %d", e.Code)
}

type Client struct {
	http      *http.Client
	userAgent string
	breaker   *gobreaker.CircuitBreaker
}

// New builds a client from the lookup settings. Timeouts and breaker
// settings are fixed for the client lifetime; the endpoint and bucket are
// read from the snapshot passed to every Exists call.
func New(cfg *config.Config) *Client {
	lc := cfg.Lookup

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// The helper usually runs next to the proxy it serves. Never route
	// lookups through an environment proxy.
	transport.Proxy = nil
	transport.DialContext = (&net.Dialer{
		Timeout:   lc.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConnsPerHost = 2

	c := &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   lc.Timeout,
		},
		userAgent: lc.UserAgent,
	}

	if lc.BreakerFailures > 0 {
		threshold := lc.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "riak",
			MaxRequests: 1,
			Timeout:     lc.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}
	return c
}

// KeyURL returns the Riak object URL for key in the snapshot bucket.
func KeyURL(cfg *config.Config, key string) string {
	return fmt.Sprintf("http://%s/buckets/%s/keys/%s",
		cfg.Endpoint(), url.PathEscape(cfg.RiakBucket), url.PathEscape(key))
}

// Exists reports whether key is stored in the configured bucket. Only a 200
// answer means present. A 404 is a plain miss; every other outcome comes
// back as false together with the reason.
func (c *Client) Exists(ctx context.Context, cfg *config.Config, key string) (bool, error) {
	target := KeyURL(cfg, key)

	if c.breaker == nil {
		return c.fetch(ctx, target)
	}

	var found bool
	var statusErr *StatusError
	_, err := c.breaker.Execute(func() (interface{}, error) {
		ok, err := c.fetch(ctx, target)
		found = ok
		// only transport failures and server errors count against the store
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			return nil, nil
		}
		return nil, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false, ErrBreakerOpen
	case err != nil:
		return false, err
	case statusErr != nil:
		return false, statusErr
	}
	return found, nil
}

func (c *Client) fetch(ctx context.Context, target string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &StatusError{Code: resp.StatusCode}
	}
}
