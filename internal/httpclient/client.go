// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient is the transport the provider adapters send
// classification requests over. It makes one attempt per call and
// always hands back whatever rate-limit headers the response carried,
// win or lose: pkg/ratelimit.Governor is the single place backoff and
// provider failover policy lives, so this package doesn't duplicate
// it with a status-code retry loop of its own. The only retrying done
// here is for requests that never reached the provider at all (a
// dropped connection, a DNS failure) - a handful of fixed, short
// retries, since those are address-this-process problems the governor
// has no opinion on.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/originate-data/dirclass/internal/logging"
)

// RateLimitInfo is what a provider's response headers say about
// remaining capacity.
type RateLimitInfo struct {
	RetryAfter            time.Duration
	ResetTime             int64
	RequestsRemaining     int
	InputTokensRemaining  int
	OutputTokensRemaining int
	TokensRemaining       int
}

// HeaderParser extracts rate limit info from response headers.
type HeaderParser func(http.Header) RateLimitInfo

// Client wraps http.Client with a connection-level retry only.
type Client struct {
	client         *http.Client
	maxConnRetries int
	connRetryDelay time.Duration
	headerParser   HeaderParser
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client (transport, timeout, proxy).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxConnRetries sets how many times a request that never reached
// the provider (dial/DNS/connection-reset failure) is retried.
func WithMaxConnRetries(max int) Option {
	return func(c *Client) {
		c.maxConnRetries = max
	}
}

// WithConnRetryDelay sets the fixed delay between connection retries.
func WithConnRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.connRetryDelay = delay
	}
}

// WithHeaderParser sets the rate limit header parser.
func WithHeaderParser(parser HeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		client:         &http.Client{Timeout: 120 * time.Second},
		maxConnRetries: 2,
		connRetryDelay: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do sends the request once, retrying only on a bare connection
// failure. Any response that reaches the caller - success or an HTTP
// error status - is returned exactly as the provider sent it, along
// with whatever the header parser made of its rate-limit headers: the
// caller (the provider adapter, then the cascade's rate-limit
// governor) decides what to do about a 429 or a 503, not this client.
func (c *Client) Do(req *http.Request) (*http.Response, RateLimitInfo, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, RateLimitInfo{}, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxConnRetries; attempt++ {
		if attempt > 0 && bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.client.Do(req)
		if err == nil {
			return resp, c.parseHeaders(resp.Header), nil
		}

		if !isConnectionError(err) || attempt >= c.maxConnRetries {
			return nil, RateLimitInfo{}, err
		}

		lastErr = err
		logging.GetLogger().Warn("httpclient: connection attempt failed, retrying",
			"attempt", attempt+1, "max", c.maxConnRetries, "error", err)

		select {
		case <-req.Context().Done():
			return nil, RateLimitInfo{}, req.Context().Err()
		case <-time.After(c.connRetryDelay):
		}
	}

	return nil, RateLimitInfo{}, lastErr
}

func (c *Client) parseHeaders(h http.Header) RateLimitInfo {
	if c.headerParser == nil {
		return RateLimitInfo{}
	}
	return c.headerParser(h)
}

// isConnectionError reports whether err means the request never
// reached the provider at all (as opposed to the provider answering
// with an HTTP error status, which surfaces as a nil error here). A
// context cancellation or deadline is the caller's own decision, not
// a connection fault, so it's excluded.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
