// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/patent-jump/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the redirecting HTTP server",
	Long: `Serve listens for GET /patent/{id} and answers with a 302 redirect to the
token-qualified PDF download URL. It also exposes /diagnose/{id},
POST /admin/token, /healthz and /metrics.

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Bool("stale-redirect", false, "redirect with a stale seed token when acquisition fails")
	serveCmd.Flags().String("history-db", "", "SQLite file for the resolution history (empty disables)")
	serveCmd.Flags().Int("max-retries", 0, "retries on upstream HTTP 429")
	serveCmd.Flags().Float64("rate-limit", 0, "max upstream requests per second (0 = unlimited)")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.stale_redirect", serveCmd.Flags().Lookup("stale-redirect"))
	_ = viper.BindPFlag("history.db_path", serveCmd.Flags().Lookup("history-db"))
	_ = viper.BindPFlag("upstream.max_retries", serveCmd.Flags().Lookup("max-retries"))
	_ = viper.BindPFlag("upstream.rate_limit", serveCmd.Flags().Lookup("rate-limit"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(a.resolver, server.Options{
		AdminSecret: cfg.Server.AdminSecret,
		TokenHeader: cfg.Upstream.TokenHeader,
		Metrics:     a.metrics,
		Version:     version,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Bool("admin", cfg.Server.AdminSecret != "").
			Bool("fallback_token", cfg.Server.FallbackToken != "").
			Bool("stale_redirect", cfg.Server.StaleRedirect).
			Bool("history", cfg.History.DBPath != "").
			Msg("server.starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info().Msg("server.stopped")
	return nil
}
