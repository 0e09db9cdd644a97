// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout bounds each outbound call, including the home page warm-up.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with upstream requests. It
	// should resemble a desktop browser; the search API rejects obvious bots.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// UpstreamConfig describes the Patent Public Search endpoints and how to talk to them.
type UpstreamConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// HomeURL is fetched before searching to collect session cookies.
	HomeURL string `json:"home_url" yaml:"home_url" mapstructure:"home_url"`

	// SearchURL is the generic search endpoint that issues access tokens.
	SearchURL string `json:"search_url" yaml:"search_url" mapstructure:"search_url"`

	// DownloadURL is the PDF endpoint; the document id is appended as a path segment.
	DownloadURL string `json:"download_url" yaml:"download_url" mapstructure:"download_url"`

	// Origin is sent as the Origin header and used to derive Referer.
	Origin string `json:"origin" yaml:"origin" mapstructure:"origin"`

	// TokenHeader names the header carrying the access token, both on
	// requests and on responses (default "X-Access-Token").
	TokenHeader string `json:"token_header" yaml:"token_header" mapstructure:"token_header"`

	// MaxRetries is the number of retries on HTTP 429 (default 0, no retry).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RateLimit caps outbound requests per second across all callers.
	// Zero disables the limiter.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst is the limiter burst size (default 1 when RateLimit is set).
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ServerConfig holds settings for the redirecting HTTP server.
type ServerConfig struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// AdminSecret gates POST /admin/token. Empty disables the endpoint.
	AdminSecret string `json:"admin_secret,omitempty" yaml:"admin_secret,omitempty" mapstructure:"admin_secret"`

	// FallbackToken seeds acquisition when neither the caller nor the cache has a token.
	FallbackToken string `json:"fallback_token,omitempty" yaml:"fallback_token,omitempty" mapstructure:"fallback_token"`

	// StaleRedirect lets /patent/{id} redirect with a stale seed token after
	// every acquisition attempt failed.
	StaleRedirect bool `json:"stale_redirect" yaml:"stale_redirect" mapstructure:"stale_redirect"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// HistoryConfig holds settings for the resolution history log.
type HistoryConfig struct {
	// DBPath is the SQLite database file. Empty disables history.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level   string `json:"level" yaml:"level" mapstructure:"level"`
	Format  string `json:"format" yaml:"format" mapstructure:"format"`
	NoColor bool   `json:"no_color" yaml:"no_color" mapstructure:"no_color"`
}

// Config groups all component configurations.
type Config struct {
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream" mapstructure:"upstream"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	History  HistoryConfig  `json:"history" yaml:"history" mapstructure:"history"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

// Default values for the Patent Public Search service.
const (
	DefaultHomeURL     = "https://ppubs.uspto.gov/pubwebapp/"
	DefaultSearchURL   = "https://ppubs.uspto.gov/api/searches/generic"
	DefaultDownloadURL = "https://ppubs.uspto.gov/api/pdf/downloadPdf"
	DefaultOrigin      = "https://ppubs.uspto.gov"
	DefaultTokenHeader = "X-Access-Token"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultTimeout     = 10 * time.Second
	DefaultAddr        = ":8080"
)

// DefaultConfig returns a Config pointing at the public USPTO service.
func DefaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   DefaultTimeout,
				UserAgent: DefaultUserAgent,
			},
			HomeURL:     DefaultHomeURL,
			SearchURL:   DefaultSearchURL,
			DownloadURL: DefaultDownloadURL,
			Origin:      DefaultOrigin,
			TokenHeader: DefaultTokenHeader,
		},
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// WithDefaults fills zero-valued upstream fields from DefaultConfig.
func (c UpstreamConfig) WithDefaults() UpstreamConfig {
	d := DefaultConfig().Upstream
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.HomeURL == "" {
		c.HomeURL = d.HomeURL
	}
	if c.SearchURL == "" {
		c.SearchURL = d.SearchURL
	}
	if c.DownloadURL == "" {
		c.DownloadURL = d.DownloadURL
	}
	if c.Origin == "" {
		c.Origin = d.Origin
	}
	if c.TokenHeader == "" {
		c.TokenHeader = d.TokenHeader
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}
