package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/sink"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(appendCmd)
}

var setCmd = &cobra.Command{
	Use:   "set <row> <column> <value>",
	Short: "Sets one cell. Rows are numbered from 1 in sheet order; column is a heading or feed name.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		row, err := strconv.Atoi(args[0])
		if err != nil || row < 1 {
			return fmt.Errorf("%w: row %q is not a positive number", sheetfeed.ErrConfig, args[0])
		}

		client, err := openSession(cmd.Context(), sheetfeed.Query{})
		if err != nil {
			return err
		}
		defer closeSession(client, &err)

		updated, err := client.Apply(cmd.Context(), sheetfeed.Operation{
			Type:   sheetfeed.OpUpdate,
			Row:    row - 1,
			Column: args[1],
			Value:  args[2],
		})
		var cerr *sheetfeed.ConflictError
		if errors.As(err, &cerr) && cerr.Current != nil {
			logger.Warn("row was changed remotely, current server row follows", "row", row)
			if perr := printRecord(cmd.ErrOrStderr(), client.Schema(), cerr.Current); perr != nil {
				logger.Error("failed to print server row", "err", perr)
			}
		}
		if err != nil {
			return err
		}
		logger.Info("updated row", "row", row, "column", args[1])
		return printRecord(cmd.OutOrStdout(), client.Schema(), updated)
	},
}

var appendCmd = &cobra.Command{
	Use:   "append <column=value>...",
	Short: "Appends a row to the worksheet.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		fields, err := parseFields(args)
		if err != nil {
			return err
		}

		client, err := openSession(cmd.Context(), sheetfeed.Query{Limit: 1})
		if err != nil {
			return err
		}
		defer closeSession(client, &err)

		created, err := client.Apply(cmd.Context(), sheetfeed.Operation{Type: sheetfeed.OpAppend, Fields: fields})
		if err != nil {
			return err
		}
		logger.Info("appended row", "edit", created.EditLink)
		return printRecord(cmd.OutOrStdout(), client.Schema(), created)
	},
}

func printRecord(w io.Writer, schema *sheetfeed.Schema, rec *sheetfeed.Record) error {
	t := sink.NewTable(w)
	if err := t.WriteHeader(schema.Headings()); err != nil {
		return err
	}
	if err := t.WriteRow(rec.Row(schema)); err != nil {
		return err
	}
	return t.Close()
}
