// Package rss fetches feed documents over HTTP and parses them into raw entries.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Transport defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "techpulse/1.0 (+https://github.com/bryan-buckman/techpulse)"
	DefaultRetries      = 2
	DefaultRetryBackoff = time.Second
	// MaxFeedBytes caps the size of a feed document.
	MaxFeedBytes = 10 << 20
)

// ErrBodyTooLarge is wrapped by the FetchError for a document over MaxFeedBytes.
var ErrBodyTooLarge = fmt.Errorf("feed body exceeds %d bytes", MaxFeedBytes)

// ErrorKind classifies a transport failure.
type ErrorKind string

// Transport failure kinds.
const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTPStatus ErrorKind = "http_status"
	KindRequest    ErrorKind = "request"
)

// FetchError is returned by Client.Fetch.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: http error %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// temporary reports whether another attempt may succeed.
func (e *FetchError) temporary() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// ClientConfig configures the HTTP transport.
type ClientConfig struct {
	Timeout      time.Duration // per attempt. Default: 30s.
	UserAgent    string
	Retries      int           // extra attempts after the first. Zero selects DefaultRetries, negative disables.
	RetryBackoff time.Duration // multiplied by the attempt number.
	HTTPClient   *http.Client  // optional; its Timeout is overridden by Timeout.
}

func (c *ClientConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	switch {
	case c.Retries == 0:
		c.Retries = DefaultRetries
	case c.Retries < 0:
		c.Retries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}

// Client downloads feed documents.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	cfg.defaults()
	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		hc = &clone
	}
	hc.Timeout = cfg.Timeout
	return &Client{http: hc, cfg: cfg}
}

// Fetch downloads url, retrying temporary failures. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr *FetchError
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			case <-ctx.Done():
				return nil, &FetchError{Kind: classify(ctx.Err()), URL: url, Err: ctx.Err()}
			}
		}
		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !err.temporary() || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindRequest, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Kind:       KindHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFeedBytes+1))
	if err != nil {
		return nil, &FetchError{Kind: classify(err), URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > MaxFeedBytes {
		return nil, &FetchError{Kind: KindRequest, URL: url, Err: ErrBodyTooLarge}
	}
	return body, nil
}

// classify maps a transport error to a kind.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindRequest
}
