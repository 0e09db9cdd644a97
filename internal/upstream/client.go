// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upstream talks to the Patent Public Search service: a cookie
// warm-up against the web app and the generic search call that hands out
// access tokens in a response header.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pdiddy/patent-jump/internal/httputil"
	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// ErrUpstreamUnreachable wraps transport failures and timeouts. HTTP error
// statuses are not errors; they are returned in the SearchAttempt.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// Request kinds used for metrics labels.
const (
	KindHome   = "home"
	KindSearch = "search"
)

// bodySnippetLimit caps how much of a search response is kept for diagnostics.
const bodySnippetLimit = 512

// searchRequest is the fixed-shape body the web app sends for a
// single-document lookup by publication number.
type searchRequest struct {
	CursorMarker    string           `json:"cursorMarker"`
	DatabaseFilters []databaseFilter `json:"databaseFilters"`
	Fields          []string         `json:"fields"`
	Op              string           `json:"op"`
	PageSize        int              `json:"pageSize"`
	Q               string           `json:"q"`
	SearchType      int              `json:"searchType"`
	Sort            string           `json:"sort"`
}

type databaseFilter struct {
	DatabaseName string `json:"databaseName"`
}

func newSearchRequest(docID string) searchRequest {
	return searchRequest{
		CursorMarker: "*",
		DatabaseFilters: []databaseFilter{
			{DatabaseName: "USPAT"},
			{DatabaseName: "US-PGPUB"},
			{DatabaseName: "USOCR"},
		},
		Fields:     []string{"documentId"},
		Op:         "OR",
		PageSize:   1,
		Q:          "(" + docID + ").pn.",
		SearchType: 0,
		Sort:       "date_publ desc",
	}
}

// Client issues requests against the configured endpoints. It is safe for
// concurrent use; per-resolution state lives in the cookie jar passed to
// each call.
type Client struct {
	cfg       types.UpstreamConfig
	transport http.RoundTripper
	limiter   *rate.Limiter
	metrics   *metrics.Collector
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport (default http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithMetrics records every outbound call in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a Client for cfg. Zero-valued fields take the public
// service defaults.
func New(cfg types.UpstreamConfig, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		cfg:       cfg,
		transport: http.DefaultTransport,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration after defaults.
func (c *Client) Config() types.UpstreamConfig {
	return c.cfg
}

// httpClient builds a client bound to jar. Redirects are never followed:
// the token header lives on the first response.
func (c *Client) httpClient(jar http.CookieJar) *http.Client {
	return &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// setBrowserHeaders makes the request look like it came from the web app.
func (c *Client) setBrowserHeaders(req *http.Request, accept string) {
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", c.cfg.Origin)
	req.Header.Set("Referer", c.cfg.HomeURL)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

// Warm fetches the home page so that jar holds the session cookies the
// search endpoint expects. Callers treat any error as non-fatal.
func (c *Client) Warm(ctx context.Context, jar http.CookieJar) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("%w: waiting for rate limiter: %w", ErrUpstreamUnreachable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HomeURL, nil)
	if err != nil {
		return fmt.Errorf("creating home request: %w", err)
	}
	c.setBrowserHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.httpClient(jar).Do(req)
	if err != nil {
		c.metrics.RecordUpstream(KindHome, 0, time.Since(start))
		return fmt.Errorf("%w: home request: %w", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	c.metrics.RecordUpstream(KindHome, resp.StatusCode, time.Since(start))

	log.Ctx(ctx).Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("upstream.warm")
	return nil
}

// Search posts a publication-number query for docID. When token is
// non-empty it is sent in the token header; an empty token sends no
// credential at all. The returned attempt carries the status, response
// headers, a body snippet, and any token found in the response headers.
//
// A non-nil error always wraps ErrUpstreamUnreachable (or is a request
// construction error); the attempt is still populated with what is known.
func (c *Client) Search(ctx context.Context, jar http.CookieJar, docID, token string) (types.SearchAttempt, error) {
	attempt := types.SearchAttempt{SentToken: token != ""}

	body, err := json.Marshal(newSearchRequest(docID))
	if err != nil {
		return attempt, fmt.Errorf("encoding search body: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		err = fmt.Errorf("%w: waiting for rate limiter: %w", ErrUpstreamUnreachable, err)
		attempt.Err = err.Error()
		return attempt, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, bytes.NewReader(body))
	if err != nil {
		return attempt, fmt.Errorf("creating search request: %w", err)
	}
	c.setBrowserHeaders(req, "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(c.cfg.TokenHeader, token)
	}

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, c.httpClient(jar), req, c.cfg.MaxRetries)
	attempt.Duration = time.Since(start)
	if err != nil {
		c.metrics.RecordUpstream(KindSearch, 0, attempt.Duration)
		err = fmt.Errorf("%w: search request: %w", ErrUpstreamUnreachable, err)
		attempt.Err = err.Error()
		return attempt, err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit))

	attempt.Status = resp.StatusCode
	attempt.Header = resp.Header.Clone()
	attempt.BodySnippet = strings.ToValidUTF8(string(snippet), "")
	attempt.ObservedToken = strings.TrimSpace(resp.Header.Get(c.cfg.TokenHeader))
	c.metrics.RecordUpstream(KindSearch, resp.StatusCode, attempt.Duration)

	log.Ctx(ctx).Debug().
		Int("status", attempt.Status).
		Bool("sent_token", attempt.SentToken).
		Str("observed_token", types.MaskToken(attempt.ObservedToken)).
		Dur("duration", attempt.Duration).
		Msg("upstream.search")
	return attempt, nil
}
