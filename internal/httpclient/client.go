// Package httpclient implements the HttpClient (spec C3): synchronous
// GET/POST with a hard timeout, a redirect policy, and a uniform response
// envelope. Grounded on internal/httputil/httputil.go's timeout/redirect
// client shape, extended with a per-host rate.Limiter so RegulatoryMonitor
// scrape cycles (C7) don't burst a single regulator's site (spec.md §5:
// "every outbound HTTP call has a hard deadline").
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Envelope is the uniform response shape spec.md §4.1/C3 requires.
type Envelope struct {
	Status  int
	Body    []byte
	Headers http.Header
	Success bool
	Error   string
}

// Client is the HttpClient. Safe for concurrent use: one scrape worker per
// regulatory source (spec.md §5) calls LimiterFor/Get concurrently.
type Client struct {
	http     *http.Client
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Client with the given timeout and a redirect policy that
// follows at most 4 redirects; a fifth redirect response is returned as-is.
func New(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiters: make(map[string]*rate.Limiter),
	}
}

// LimiterFor returns (creating if needed) a token-bucket limiter scoped to
// host, so concurrent scrape cycles against the same regulator stay polite.
func (c *Client) LimiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(500*time.Millisecond), 2)
	c.limiters[host] = l
	return l
}

// Get performs a synchronous GET with the given hard deadline.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) Envelope {
	return c.do(ctx, http.MethodGet, url, nil, headers)
}

// Post performs a synchronous POST with the given hard deadline.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) Envelope {
	return c.do(ctx, http.MethodPost, url, bytes.NewReader(body), headers)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) Envelope {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Envelope{Success: false, Error: fmt.Sprintf("build request: %v", err)}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{Success: false, Error: fmt.Sprintf("perform request: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{Status: resp.StatusCode, Success: false, Error: fmt.Sprintf("read body: %v", err)}
	}

	return Envelope{
		Status:  resp.StatusCode,
		Body:    respBody,
		Headers: resp.Header,
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
}
