package cmd

import (
	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/spf13/cobra"
)

var rowsFlags struct {
	where   []string
	orderBy string
	reverse bool
	limit   int
	offset  int
	format  string
	out     string
}

func init() {
	f := rowsCmd.Flags()
	f.StringArrayVarP(&rowsFlags.where, "where", "w", nil, `row filter sent to the server, e.g. "qty>10" (repeatable, ANDed)`)
	f.StringVar(&rowsFlags.orderBy, "orderby", "", "column to sort by")
	f.BoolVar(&rowsFlags.reverse, "reverse", false, "reverse the sort order")
	f.IntVar(&rowsFlags.limit, "limit", 0, "maximum number of rows")
	f.IntVar(&rowsFlags.offset, "offset", 0, "rows to skip")
	f.StringVarP(&rowsFlags.format, "format", "f", "table", "output format: table, csv or xlsx")
	f.StringVarP(&rowsFlags.out, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(rowsCmd)
}

var rowsCmd = &cobra.Command{
	Use:   "rows",
	Short: "Prints the worksheet's rows.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		query := sheetfeed.Query{
			OrderBy: sheetfeed.NormalizeName(rowsFlags.orderBy),
			Reverse: rowsFlags.reverse,
			Limit:   rowsFlags.limit,
			Offset:  rowsFlags.offset,
		}
		for _, w := range rowsFlags.where {
			cond, err := parseCondition(w)
			if err != nil {
				return err
			}
			query.Conditions = append(query.Conditions, cond)
		}
		if err := sheetfeed.ValidateQuery(query); err != nil {
			return err
		}

		client, err := openSession(cmd.Context(), query)
		if err != nil {
			return err
		}
		defer closeSession(client, &err)

		out, closeOut, err := openSink(rowsFlags.format, rowsFlags.out)
		if err != nil {
			return err
		}
		if err := client.Export(out); err != nil {
			closeOut()
			return err
		}
		logger.Debug("exported rows", "count", len(client.Rows()))
		return closeOut()
	},
}
