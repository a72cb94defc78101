package cmd

import (
	"fmt"
	"time"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/adapters/catalog"
	"github.com/ideamans/go-sheetfeed/adapters/feed"
)

// Config is the CLI configuration file
type Config struct {
	// Settings is the ini file holding credentials and the spreadsheet key
	Settings string        `json:"settings"`
	Feed     FeedConfig    `json:"feed"`
	Catalog  CatalogConfig `json:"catalog"`
}

type FeedConfig struct {
	BaseURL  string `json:"base_url"`
	TokenURL string `json:"token_url"`
	// Spreadsheet overrides the key held in the settings file
	Spreadsheet    string `json:"spreadsheet"`
	Visibility     string `json:"visibility"`
	Worksheet      string `json:"worksheet"`
	WorksheetIndex int    `json:"worksheet_index"`
	IdleTimeout    string `json:"idle_timeout"`
	Streaming      bool   `json:"streaming"`
	UserAgent      string `json:"user_agent"`
}

type CatalogConfig struct {
	Dir               string  `json:"dir"`
	IdleTimeout       string  `json:"idle_timeout"`
	UserAgent         string  `json:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

const defaultSettings = "sheetfeed.ini"

func (c Config) settingsPath() string {
	if c.Settings == "" {
		return defaultSettings
	}
	return c.Settings
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: idle_timeout %q: %v", sheetfeed.ErrConfig, s, err)
	}
	return d, nil
}

func (c FeedConfig) adapterConfig() (feed.Config, error) {
	timeout, err := parseTimeout(c.IdleTimeout)
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{
		BaseURL:        c.BaseURL,
		TokenURL:       c.TokenURL,
		Visibility:     c.Visibility,
		Worksheet:      c.Worksheet,
		WorksheetIndex: c.WorksheetIndex,
		IdleTimeout:    timeout,
		Streaming:      c.Streaming,
		UserAgent:      c.UserAgent,
		Logger:         logger,
	}, nil
}

func (c CatalogConfig) cacheConfig() (catalog.Config, error) {
	timeout, err := parseTimeout(c.IdleTimeout)
	if err != nil {
		return catalog.Config{}, err
	}
	return catalog.Config{
		Dir:               c.Dir,
		IdleTimeout:       timeout,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
		Logger:            logger,
	}, nil
}
