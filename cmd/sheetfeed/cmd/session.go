package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/adapters/feed"
	"github.com/ideamans/go-sheetfeed/credentials"
	"github.com/ideamans/go-sheetfeed/sink"
)

// openSession loads the configured worksheet. The caller must Close the
// client so refreshed tokens reach the settings file.
func openSession(ctx context.Context, query sheetfeed.Query) (*sheetfeed.Client, error) {
	store, err := credentials.Load(config.settingsPath())
	if err != nil {
		return nil, err
	}
	key := config.Feed.Spreadsheet
	if key == "" {
		key, _ = store.Get(credentials.KeySpreadsheet)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no spreadsheet key in config or %s", sheetfeed.ErrConfig, store.Path())
	}

	feedConfig, err := config.Feed.adapterConfig()
	if err != nil {
		return nil, err
	}
	clientConfig := feed.DefaultClientConfig()
	clientConfig.Query = query
	client := sheetfeed.New(feed.NewSheetsAdaptor(key, feedConfig, store), store, clientConfig)

	if err := client.Initialize(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Error("failed to close session", "err", cerr)
		}
		return nil, err
	}
	return client, nil
}

// openSink opens a sink of format writing to path, or stdout when path is
// empty or "-". The returned close function closes both.
func openSink(format, path string) (sheetfeed.Sink, func() error, error) {
	var out io.Writer = os.Stdout
	closeOut := func() error { return nil }
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		out, closeOut = f, f.Close
	}

	var s sheetfeed.Sink
	switch strings.ToLower(format) {
	case "csv":
		s = sink.NewCSV(out)
	case "table":
		s = sink.NewTable(out)
	case "xlsx":
		x, err := sink.NewXLSX(out, "")
		if err != nil {
			closeOut()
			return nil, nil, err
		}
		s = x
	default:
		closeOut()
		return nil, nil, fmt.Errorf("%w: unknown format %q, want table, csv or xlsx", sheetfeed.ErrConfig, format)
	}

	return s, func() error {
		err := s.Close()
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
