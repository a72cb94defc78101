package catalog

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultDir               = "cache"
	DefaultIdleTimeout       = 100 * time.Second
	DefaultRequestsPerSecond = 2
)

// Config represents configuration specific to the catalog scraper
type Config struct {
	// Dir is the root of the response cache
	Dir         string
	IdleTimeout time.Duration
	UserAgent   string
	// RequestsPerSecond limits uncached fetches; negative disables the limit
	RequestsPerSecond float64
	// AcceptTypes are the media types a page may be served as
	AcceptTypes []string
	// CloudflareBypass wraps the transport with browser-like TLS and headers
	CloudflareBypass bool

	// Transport replaces the default HTTP transport, mostly for tests
	Transport http.RoundTripper
	Logger    *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = DefaultDir
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if len(c.AcceptTypes) == 0 {
		c.AcceptTypes = []string{"text/html"}
	}
	if c.Transport == nil {
		c.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			IdleConnTimeout: c.IdleTimeout,
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
