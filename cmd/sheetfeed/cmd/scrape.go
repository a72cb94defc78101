package cmd

import (
	"fmt"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/adapters/catalog"
	"github.com/spf13/cobra"
)

var scrapeFlags struct {
	layout  string
	format  string
	out     string
	counter string
	header  string
	rows    string
	cells   string
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeFlags.layout, "layout", "l", "product", "page layout: product or table")
	f.StringVarP(&scrapeFlags.format, "format", "f", "csv", "output format: table, csv or xlsx")
	f.StringVarP(&scrapeFlags.out, "out", "o", "", "output file (default stdout)")
	f.StringVar(&scrapeFlags.counter, "counter", "", "table layout: selector of the total row count")
	f.StringVar(&scrapeFlags.header, "header", "", "table layout: selector of the element holding the header row")
	f.StringVar(&scrapeFlags.rows, "rows", "", "table layout: selector of each data row")
	f.StringVar(&scrapeFlags.cells, "cells", "", `table layout: selector of cells within a row (default "td, th")`)
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Follows a paginated listing from url and writes every row. Pages are cached on disk.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := scrapeLayout()
		if err != nil {
			return err
		}
		cacheConfig, err := config.Catalog.cacheConfig()
		if err != nil {
			return err
		}
		walker := catalog.NewWalker(catalog.NewCache(cacheConfig), layout, args[0])

		out, closeOut, err := openSink(scrapeFlags.format, scrapeFlags.out)
		if err != nil {
			return err
		}
		err = walker.Walk(cmd.Context(), func(page *catalog.Page) error {
			logger.Info("page", "number", page.Number, "rows", len(page.Rows), "cached", page.Cached)
			if page.Number == 1 {
				if err := out.WriteHeader(page.Header); err != nil {
					return err
				}
			}
			for _, row := range page.Rows {
				if err := out.WriteRow(row); err != nil {
					return err
				}
			}
			return nil
		})
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	},
}

func scrapeLayout() (catalog.Layout, error) {
	switch scrapeFlags.layout {
	case "product":
		return catalog.ProductLayout{}, nil
	case "table":
		if scrapeFlags.counter == "" || scrapeFlags.header == "" || scrapeFlags.rows == "" {
			return nil, fmt.Errorf("%w: table layout needs --counter, --header and --rows", sheetfeed.ErrConfig)
		}
		return catalog.TableLayout{
			CounterSelector: scrapeFlags.counter,
			HeaderSelector:  scrapeFlags.header,
			RowSelector:     scrapeFlags.rows,
			CellSelector:    scrapeFlags.cells,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown layout %q, want product or table", sheetfeed.ErrConfig, scrapeFlags.layout)
}
