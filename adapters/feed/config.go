package feed

import (
	"log/slog"
	"net/http"
	"time"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

const (
	DefaultBaseURL     = "https://spreadsheets.google.com"
	DefaultTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultIdleTimeout = 100 * time.Second
)

// Config represents configuration specific to the feed adapter
type Config struct {
	// BaseURL is the feed API root, e.g. https://spreadsheets.google.com
	BaseURL string
	// TokenURL is the OAuth2 token endpoint used for refreshes
	TokenURL string
	// Visibility is the feed visibility path segment, "private" by default
	Visibility string
	// Worksheet selects a worksheet by title; empty means WorksheetIndex
	Worksheet      string
	WorksheetIndex int
	// IdleTimeout closes pooled connections idle for longer than this
	IdleTimeout time.Duration
	// Streaming sends request entries with chunked transfer-encoding
	// instead of buffering them
	Streaming bool
	UserAgent string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.Visibility == "" {
		c.Visibility = "private"
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "go-sheetfeed"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				IdleConnTimeout: c.IdleTimeout,
			},
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// DefaultClientConfig returns the recommended session configuration for
// the feed adapter: rows in sheet order, no server-side filter.
func DefaultClientConfig() *sheetfeed.Config {
	return &sheetfeed.Config{}
}
