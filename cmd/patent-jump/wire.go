// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/patent-jump/internal/acquire"
	"github.com/pdiddy/patent-jump/internal/history"
	"github.com/pdiddy/patent-jump/internal/metrics"
	"github.com/pdiddy/patent-jump/internal/token"
	"github.com/pdiddy/patent-jump/internal/upstream"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// app holds the components shared by serve and resolve.
type app struct {
	cfg      types.Config
	metrics  *metrics.Collector
	cache    *token.Cache
	resolver *acquire.Resolver
	history  *history.Store
}

// newApp wires the upstream client, cache, protocol and resolver from cfg.
// The history store is opened only when a database path is configured.
func newApp(cfg types.Config) (*app, error) {
	m := metrics.NewCollector(nil)
	client := upstream.New(cfg.Upstream, upstream.WithMetrics(m))

	cache := token.NewCache("")
	proto := acquire.New(client, cache)
	proto.Metrics = m

	a := &app{
		cfg:     cfg,
		metrics: m,
		cache:   cache,
		resolver: &acquire.Resolver{
			Protocol:      proto,
			Cache:         cache,
			DownloadBase:  client.Config().DownloadURL,
			FallbackToken: cfg.Server.FallbackToken,
			AllowStale:    cfg.Server.StaleRedirect,
		},
	}

	if cfg.History.DBPath != "" {
		store, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.history = store
		a.resolver.History = store
		log.Debug().Str("path", cfg.History.DBPath).Msg("history.enabled")
	}
	return a, nil
}

func (a *app) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
