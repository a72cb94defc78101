package cmd

import (
	"errors"
	"strconv"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(columnsCmd)
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Lists the worksheet's columns with their headings and feed names.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		client, err := openSession(cmd.Context(), sheetfeed.Query{Limit: 1})
		if err != nil {
			return err
		}
		defer closeSession(client, &err)

		out, closeOut, err := openSink("table", "")
		if err != nil {
			return err
		}
		if err := out.WriteHeader([]string{"#", "column", "heading", "name"}); err != nil {
			return err
		}
		for i, col := range client.Schema().Columns() {
			row := []string{strconv.Itoa(i + 1), sheetfeed.ColumnLetters(i), col.Heading, col.Name}
			if err := out.WriteRow(row); err != nil {
				return err
			}
		}
		return closeOut()
	},
}

// closeSession closes client and joins a failure to save credentials
// into the command's error.
func closeSession(client *sheetfeed.Client, err *error) {
	if cerr := client.Close(); cerr != nil {
		logger.Error("failed to close session", "err", cerr)
		*err = errors.Join(*err, cerr)
	}
}
