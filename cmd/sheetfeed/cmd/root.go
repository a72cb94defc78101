package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/internal/configutil"
	"github.com/spf13/cobra"
)

// ConfigName is the file searched for from the working directory upwards
const ConfigName = "sheetfeed.json5"

var (
	configPath string
	verbose    bool

	config Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:           "sheetfeed",
	Short:         "sheetfeed reads and edits spreadsheet feeds and scrapes paginated catalogs into tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: nearest "+ConfigName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
}

func loadConfig() error {
	var err error
	if configPath != "" {
		config, err = configutil.ReadConfig[Config](configPath, logger)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
		return nil
	}

	var path string
	config, path, err = configutil.Find[Config](".", ConfigName, logger)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("no config file found, using defaults")
		return nil
	case err != nil:
		return err
	}
	logger.Debug("loaded config", "path", path)
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, sheetfeed.ErrReauthRequired) {
			fmt.Fprintln(os.Stderr, "the stored refresh token was rejected; authorize again and update the settings file")
			os.Exit(2)
		}
		os.Exit(1)
	}
}
