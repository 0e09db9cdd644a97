// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server maps inbound HTTP requests onto token acquisition and
// turns the outcome into a redirect or a JSON diagnostic.
package server

import (
	"errors"
	"net/http"

	"github.com/pdiddy/patent-jump/internal/acquire"
	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/internal/server/middleware"
	"github.com/pdiddy/patent-jump/internal/token"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// ErrMissingCredential is reported when an admin token override lacks the
// shared secret or the token value.
var ErrMissingCredential = errors.New("missing credential")

type Server struct {
	resolver    *acquire.Resolver
	cache       *token.Cache
	metrics     *metrics.Collector
	adminSecret string
	tokenHeader string
	version     string
}

// Options configures a Server beyond its resolver.
type Options struct {
	// AdminSecret gates POST /admin/token; empty disables it.
	AdminSecret string

	// TokenHeader is masked in diagnostic output.
	TokenHeader string

	Metrics *metrics.Collector
	Version string
}

func NewServer(resolver *acquire.Resolver, opts Options) *Server {
	if opts.TokenHeader == "" {
		opts.TokenHeader = types.DefaultTokenHeader
	}
	return &Server{
		resolver:    resolver,
		cache:       resolver.Cache,
		metrics:     opts.Metrics,
		adminSecret: opts.AdminSecret,
		tokenHeader: opts.TokenHeader,
		version:     opts.Version,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.Handle("GET "+MetricsRoute, s.metrics.Handler())

	// redirect + diagnostics
	mux.HandleFunc("GET "+PatentRoute, s.handlePatent)
	mux.HandleFunc("GET "+DiagnoseRoute, s.handleDiagnose)

	// admin
	mux.HandleFunc("POST "+AdminTokenRoute, s.handleAdminToken)

	return middleware.Recover(
		middleware.CorrelationID(
			middleware.Logging(
				middleware.Metrics(s.metrics)(mux))))
}
