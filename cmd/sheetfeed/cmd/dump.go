package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/ideamans/go-sheetfeed/adapters/feed"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Prints the element outline of a saved feed document, reading stdin without a file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		out := bufio.NewWriter(os.Stdout)
		if err := feed.DumpTree(out, in); err != nil {
			return err
		}
		return out.Flush()
	},
}
