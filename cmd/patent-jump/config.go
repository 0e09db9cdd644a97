// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/patent-jump/internal/secrets"
	"github.com/pdiddy/patent-jump/pkg/types"
)

// setDefaults registers every config key so that environment variables
// are picked up by Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)
	v.SetDefault("upstream.user_agent", d.Upstream.UserAgent)
	v.SetDefault("upstream.home_url", d.Upstream.HomeURL)
	v.SetDefault("upstream.search_url", d.Upstream.SearchURL)
	v.SetDefault("upstream.download_url", d.Upstream.DownloadURL)
	v.SetDefault("upstream.origin", d.Upstream.Origin)
	v.SetDefault("upstream.token_header", d.Upstream.TokenHeader)
	v.SetDefault("upstream.max_retries", d.Upstream.MaxRetries)
	v.SetDefault("upstream.rate_limit", d.Upstream.RateLimit)
	v.SetDefault("upstream.rate_burst", d.Upstream.RateBurst)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.admin_secret", d.Server.AdminSecret)
	v.SetDefault("server.fallback_token", d.Server.FallbackToken)
	v.SetDefault("server.stale_redirect", d.Server.StaleRedirect)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("history.db_path", d.History.DBPath)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.no_color", d.Log.NoColor)
}

// loadConfig returns the effective configuration: defaults, then config
// file, environment and flags, then secrets for credentials left unset.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Upstream = cfg.Upstream.WithDefaults()
	cfg.Server.AdminSecret = s.Or(secrets.KeyAdminSecret, cfg.Server.AdminSecret)
	cfg.Server.FallbackToken = s.Or(secrets.KeyFallbackToken, cfg.Server.FallbackToken)
	return cfg, nil
}

// masked returns cfg with credentials replaced for display.
func masked(cfg types.Config) types.Config {
	if cfg.Server.AdminSecret != "" {
		cfg.Server.AdminSecret = "********"
	}
	cfg.Server.FallbackToken = types.MaskToken(cfg.Server.FallbackToken)
	return cfg
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration patent-jump would run with after merging
defaults, the config file, PATENT_JUMP_* environment variables and the
secrets directory. Credentials are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(masked(cfg))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
