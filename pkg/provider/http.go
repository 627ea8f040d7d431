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

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/internal/httpclient"
	"github.com/originate-data/dirclass/pkg/model"
)

// HTTPConfig configures one raw-HTTP provider endpoint.
type HTTPConfig struct {
	ID             ID
	BaseURL        string
	APIKey         string
	Model          string
	CostPerKTokens float64
	RequestTimeout time.Duration
	MaxRetries     int
}

// HTTPProvider is the shared adapter shape for Provider-A and
// Provider-B: both speak a chat-completions-style JSON API and differ
// only in endpoint, auth header and response envelope, so one type
// parameterized by a buildBody/parseBody function pair covers both
// instead of two near-duplicate files.
type HTTPProvider struct {
	cfg        HTTPConfig
	client     *httpclient.Client
	buildBody  func(prompt string) ([]byte, error)
	parseBody  func([]byte) (text string, promptTokens, completionTokens int, err error)
	authHeader func(req *http.Request, apiKey string)
	encoding   *tiktoken.Tiktoken
}

// NewHTTPProvider wires an adapter for a specific envelope shape.
func NewHTTPProvider(
	cfg HTTPConfig,
	buildBody func(prompt string) ([]byte, error),
	parseBody func([]byte) (string, int, int, error),
	authHeader func(req *http.Request, apiKey string),
) *HTTPProvider {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &HTTPProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
			httpclient.WithMaxConnRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseStandardRateLimitHeaders),
		),
		buildBody:  buildBody,
		parseBody:  parseBody,
		authHeader: authHeader,
		encoding:   enc,
	}
}

func (p *HTTPProvider) ID() ID { return p.cfg.ID }

// Classify sends name and its surrounding lead context to the
// provider and parses the structured-output answer.
func (p *HTTPProvider) Classify(ctx context.Context, name string, lead Context) (Classification, error) {
	start := time.Now()
	prompt := buildPrompt(name, lead)

	body, err := p.buildBody(prompt)
	if err != nil {
		return Classification{}, classerr.Wrap(classerr.KindMalformedResponse, "failed to build request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Classification{}, classerr.Wrap(classerr.KindTransientProvider, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.authHeader(req, p.cfg.APIKey)

	resp, rlInfo, err := p.client.Do(req)
	if err != nil {
		return Classification{}, p.classifyTransportError(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return Classification{}, classerr.Wrap(classerr.KindTransientProvider, "failed to read response body", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		msg := "provider returned 429"
		if rlInfo.RetryAfter > 0 {
			msg = fmt.Sprintf("%s (retry after %s)", msg, rlInfo.RetryAfter)
		}
		return Classification{}, classerr.New(classerr.KindRateLimited, msg)
	}
	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden {
		return Classification{}, classerr.New(classerr.KindQuotaExhausted, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return Classification{}, classerr.New(classerr.KindTransientProvider, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return Classification{}, classerr.New(classerr.KindMalformedResponse, fmt.Sprintf("provider returned %d", resp.StatusCode))
	}

	text, promptTokens, completionTokens, err := p.parseBody(buf.Bytes())
	if err != nil {
		return Classification{}, classerr.Wrap(classerr.KindMalformedResponse, "failed to parse provider envelope", err)
	}

	payload, err := parseClassificationPayload(text)
	if err != nil {
		return Classification{}, classerr.Wrap(classerr.KindMalformedResponse, "structured output failed schema validation", err)
	}

	if promptTokens == 0 && completionTokens == 0 && p.encoding != nil {
		promptTokens = len(p.encoding.Encode(prompt, nil, nil))
		completionTokens = len(p.encoding.Encode(text, nil, nil))
	}
	cost := float64(promptTokens+completionTokens) / 1000.0 * p.cfg.CostPerKTokens

	return Classification{
		Category:      model.Category(payload.Category),
		Confidence:    payload.Confidence,
		RawResponse:   text,
		CostEstimate:  cost,
		LatencyMillis: time.Since(start).Milliseconds(),
		ProviderID:    p.cfg.ID,
	}, nil
}

func (p *HTTPProvider) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classerr.Wrap(classerr.KindTransientProvider, "request canceled or timed out", err)
	}
	return classerr.Wrap(classerr.KindTransientProvider, "connection to provider failed", err)
}

func buildPrompt(name string, lead Context) string {
	var b strings.Builder
	b.WriteString("Classify the demographic category of the following director name, using the surrounding business context only to disambiguate a genuinely ambiguous name. ")
	b.WriteString("Respond with the closed category set only.\n\n")
	fmt.Fprintf(&b, "Director name: %s\n", name)
	if lead.EntityName != "" {
		fmt.Fprintf(&b, "Entity name: %s\n", lead.EntityName)
	}
	if lead.RegisteredAddress != "" {
		fmt.Fprintf(&b, "Registered address: %s\n", lead.RegisteredAddress)
	}
	if lead.City != "" {
		fmt.Fprintf(&b, "City: %s\n", lead.City)
	}
	if lead.Province != "" {
		fmt.Fprintf(&b, "Province: %s\n", lead.Province)
	}
	return b.String()
}

