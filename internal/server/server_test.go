// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-jump/internal/acquire"
	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/internal/server/middleware"
	"github.com/pdiddy/patent-jump/internal/token"
	"github.com/pdiddy/patent-jump/internal/upstream"
	"github.com/pdiddy/patent-jump/pkg/types"
)

const (
	testSecret   = "s3cret-admin"
	downloadBase = "https://ppubs.example/api/pdf/downloadPdf"
)

// fakePPubs answers searches with answer(sentToken) and records every
// token it was sent.
type fakePPubs struct {
	mu     sync.Mutex
	sent   []string
	answer func(sent string) (status int, minted string)
}

func (f *fakePPubs) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pubwebapp/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/searches/generic", func(w http.ResponseWriter, r *http.Request) {
		sent := r.Header.Get(types.DefaultTokenHeader)
		f.mu.Lock()
		f.sent = append(f.sent, sent)
		f.mu.Unlock()

		status, minted := f.answer(sent)
		if minted != "" {
			w.Header().Set(types.DefaultTokenHeader, minted)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"status ` + http.StatusText(status) + `"}`))
	})
	return mux
}

func (f *fakePPubs) sentTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fixture struct {
	upstream *fakePPubs
	cache    *token.Cache
	resolver *acquire.Resolver
	metrics  *metrics.Collector
	handler  http.Handler
}

func newFixture(t *testing.T, answer func(string) (int, string), configure ...func(*acquire.Resolver, *Options)) *fixture {
	t.Helper()

	fake := &fakePPubs{answer: answer}
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	m := metrics.NewCollector(prometheus.NewRegistry())
	client := upstream.New(types.UpstreamConfig{
		HomeURL:     ts.URL + "/pubwebapp/",
		SearchURL:   ts.URL + "/api/searches/generic",
		DownloadURL: downloadBase,
		Origin:      ts.URL,
	}, upstream.WithMetrics(m))

	cache := token.NewCache("")
	proto := acquire.New(client, cache)
	proto.Metrics = m
	resolver := &acquire.Resolver{
		Protocol:     proto,
		Cache:        cache,
		DownloadBase: downloadBase,
	}
	opts := Options{AdminSecret: testSecret, Metrics: m, Version: "test"}
	for _, fn := range configure {
		fn(resolver, &opts)
	}

	return &fixture{
		upstream: fake,
		cache:    cache,
		resolver: resolver,
		metrics:  m,
		handler:  NewServer(resolver, opts).Routes(),
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func scrape(t *testing.T, f *fixture) string {
	t.Helper()
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// mintOnPlaceholder rejects every credential except the placeholder, which
// it answers with a fresh token.
func mintOnPlaceholder(sent string) (int, string) {
	if sent == acquire.PlaceholderToken {
		return http.StatusOK, "minted-token-0001"
	}
	return http.StatusUnauthorized, ""
}

func alwaysReject(string) (int, string) {
	return http.StatusUnauthorized, ""
}

func TestPatentRedirectsWithFreshToken(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US7654321B2", nil))

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, downloadBase+"/US7654321B2?requestToken=minted-token-0001", rec.Header().Get("Location"))
	assert.Equal(t, acquire.ModeFresh, rec.Header().Get(TokenStatusHeader))
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationIDHeader))

	cached, ok := f.cache.Get()
	require.True(t, ok)
	assert.Equal(t, "minted-token-0001", cached)
	assert.Equal(t, []string{acquire.PlaceholderToken}, f.upstream.sentTokens())
	assert.Contains(t, scrape(t, f), `patent_jump_redirects_total{mode="fresh"} 1`)
}

func TestPatentReusesCallerToken(t *testing.T) {
	f := newFixture(t, func(sent string) (int, string) {
		if sent == "caller-token-xyz" {
			return http.StatusOK, ""
		}
		return http.StatusUnauthorized, ""
	})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US1234567?token=caller-token-xyz", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, downloadBase+"/US1234567?requestToken=caller-token-xyz", rec.Header().Get("Location"))
	assert.Equal(t, acquire.ModeReused, rec.Header().Get(TokenStatusHeader))

	_, ok := f.cache.Get()
	assert.False(t, ok, "reused seed must not be cached")
}

func TestPatentSecondRequestUsesCachedToken(t *testing.T) {
	f := newFixture(t, func(sent string) (int, string) {
		switch sent {
		case acquire.PlaceholderToken:
			return http.StatusOK, "minted-token-0001"
		case "minted-token-0001":
			return http.StatusOK, ""
		}
		return http.StatusUnauthorized, ""
	})

	first := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US1111111", nil))
	require.Equal(t, http.StatusFound, first.Code)

	second := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US2222222", nil))
	require.Equal(t, http.StatusFound, second.Code)
	assert.Equal(t, acquire.ModeReused, second.Header().Get(TokenStatusHeader))
	assert.Equal(t, []string{acquire.PlaceholderToken, "minted-token-0001"}, f.upstream.sentTokens())
}

func TestPatentExhaustedReturnsDiagnostics(t *testing.T) {
	f := newFixture(t, alwaysReject)

	req := httptest.NewRequest(http.MethodGet, "/patent/US7654321?token=expired-token-abc", nil)
	req.Header.Set(middleware.CorrelationIDHeader, "corr-123")
	rec := f.do(t, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	body := decode[FailureResponse](t, rec)
	assert.Contains(t, body.Error, "token acquisition exhausted")
	assert.Equal(t, "corr-123", body.CorrelationID)
	assert.Equal(t, "US7654321", body.DocID)
	require.NotNil(t, body.Diagnostics)
	assert.Equal(t, http.StatusUnauthorized, body.Diagnostics.Status)
	assert.Contains(t, body.Diagnostics.BodySnippet, "Unauthorized")
	assert.Equal(t, "application/json", body.Diagnostics.Header.Get("Content-Type"))
	require.Len(t, body.Diagnostics.Attempts, 3)
	assert.Equal(t, acquire.StepSeeded, body.Diagnostics.Attempts[0].Step)
	assert.Equal(t, acquire.StepBare, body.Diagnostics.Attempts[2].Step)

	assert.NotContains(t, rec.Body.String(), "expired-token-abc")
}

func TestPatentStaleRedirect(t *testing.T) {
	f := newFixture(t, alwaysReject, func(r *acquire.Resolver, _ *Options) {
		r.AllowStale = true
		r.FallbackToken = "fallback-token-123"
	})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US7654321", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, acquire.ModeStale, rec.Header().Get(TokenStatusHeader))
	assert.Equal(t, downloadBase+"/US7654321?requestToken=fallback-token-123", rec.Header().Get("Location"))
	assert.Contains(t, scrape(t, f), `patent_jump_redirects_total{mode="stale"} 1`)
}

func TestPatentStaleWithoutSeedFails(t *testing.T) {
	f := newFixture(t, alwaysReject, func(r *acquire.Resolver, _ *Options) {
		r.AllowStale = true
	})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US7654321", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPatentCanceledDuringBareStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, func(sent string) (int, string) {
		if sent == "" {
			cancel()
		}
		return http.StatusUnauthorized, ""
	}, func(r *acquire.Resolver, _ *Options) {
		r.AllowStale = true
		r.FallbackToken = "fallback-token-123"
	})

	req := httptest.NewRequest(http.MethodGet, "/patent/US7654321", nil).WithContext(ctx)
	rec := f.do(t, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, []string{"fallback-token-123", acquire.PlaceholderToken, ""}, f.upstream.sentTokens())
}

func TestPatentIDPassedVerbatim(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/%20US7654321%20", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, downloadBase+"/%20US7654321%20?requestToken=minted-token-0001", rec.Header().Get("Location"))
}

func TestPatentBlankID(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/%20", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.upstream.sentTokens())
}

func TestPatentEscapesDocumentID(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US%2012", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, downloadBase+"/US%2012?requestToken=minted-token-0001", rec.Header().Get("Location"))
}

func TestDiagnoseSuccess(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/diagnose/US7654321", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[DiagnoseResponse](t, rec)
	assert.True(t, body.OK)
	assert.Equal(t, acquire.StepPlaceholder, body.Step)
	assert.Equal(t, acquire.OutcomeRefreshed, body.Outcome)
	assert.Equal(t, "none", body.SeedSource)
	assert.Equal(t, types.MaskToken("minted-token-0001"), body.Token)
	assert.Equal(t, downloadBase+"/US7654321?requestToken=minted-token-0001", body.URL)
	assert.True(t, body.TokenCached)
	require.Len(t, body.Attempts, 1)
	assert.Equal(t, http.StatusOK, body.Attempts[0].Status)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "minted-token-0001"), "only the url carries the full token")
}

func TestDiagnoseFailure(t *testing.T) {
	f := newFixture(t, alwaysReject, func(r *acquire.Resolver, _ *Options) {
		r.FallbackToken = "fallback-token-123"
	})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/diagnose/US7654321", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[DiagnoseResponse](t, rec)
	assert.False(t, body.OK)
	assert.Equal(t, acquire.OutcomeExhausted, body.Outcome)
	assert.Equal(t, "fallback", body.SeedSource)
	assert.Empty(t, body.URL)
	require.NotNil(t, body.Diagnostics)
	assert.Equal(t, http.StatusUnauthorized, body.Diagnostics.Status)
	assert.Len(t, body.Attempts, 3)
	assert.NotContains(t, rec.Body.String(), "fallback-token-123")
}

func TestAdminTokenJSON(t *testing.T) {
	f := newFixture(t, alwaysReject)

	req := httptest.NewRequest(http.MethodPost, "/admin/token",
		strings.NewReader(`{"secret":"`+testSecret+`","token":"override-token-42"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cached, ok := f.cache.Get()
	require.True(t, ok)
	assert.Equal(t, "override-token-42", cached)
	assert.NotContains(t, rec.Body.String(), "override-token-42")
}

func TestAdminTokenFormWithHeaderSecret(t *testing.T) {
	f := newFixture(t, alwaysReject)

	form := url.Values{TokenParam: {"override-token-42"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(AdminSecretHeader, testSecret)
	rec := f.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cached, _ := f.cache.Get()
	assert.Equal(t, "override-token-42", cached)
}

func TestAdminTokenRejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   int
	}{
		{"missing secret", `{"token":"t-1"}`, "", http.StatusUnauthorized},
		{"wrong secret", `{"secret":"nope","token":"t-1"}`, "", http.StatusForbidden},
		{"wrong header secret", `{"secret":"` + testSecret + `","token":"t-1"}`, "nope", http.StatusForbidden},
		{"missing token", `{"secret":"` + testSecret + `"}`, "", http.StatusBadRequest},
		{"malformed json", `{"secret":`, "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, alwaysReject)

			req := httptest.NewRequest(http.MethodPost, "/admin/token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set(AdminSecretHeader, tt.header)
			}
			rec := f.do(t, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			_, ok := f.cache.Get()
			assert.False(t, ok)
		})
	}
}

func TestAdminTokenMissingCredentialMessage(t *testing.T) {
	f := newFixture(t, alwaysReject)

	req := httptest.NewRequest(http.MethodPost, "/admin/token", strings.NewReader(`{"secret":"`+testSecret+`"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(t, req)

	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["error"], ErrMissingCredential.Error())
}

func TestAdminTokenDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t, alwaysReject, func(_ *acquire.Resolver, o *Options) {
		o.AdminSecret = ""
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/token", strings.NewReader(`{"secret":"","token":"t-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(t, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, alwaysReject)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["token_cached"])

	f.cache.Set("some-token-value")
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body = decode[map[string]any](t, rec)
	assert.Equal(t, true, body["token_cached"])
}

func TestAbout(t *testing.T) {
	f := newFixture(t, alwaysReject)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "patent-jump", body["name"])
	assert.Equal(t, "test", body["version"])

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, mintOnPlaceholder)

	f.do(t, httptest.NewRequest(http.MethodGet, "/patent/US7654321", nil))
	out := scrape(t, f)

	assert.Contains(t, out, "patent_jump_redirects_total")
	assert.Contains(t, out, `patent_jump_http_requests_total{code="302",route="GET /patent/{id}"} 1`)
	assert.Contains(t, out, `patent_jump_upstream_requests_total{code="200",kind="search"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, alwaysReject)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/token", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
