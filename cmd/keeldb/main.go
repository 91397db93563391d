// cmd/keeldb/main.go
//
// KeelDB CLI - interactive SQL shell over a KeelDB database file.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"keel/pkg/cli"
	"keel/pkg/db"
)

var (
	flagPageSize int
	flagLogLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "keeldb <database-file>",
		Short: "KeelDB interactive SQL shell",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	rootCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "page size in bytes (default 4096)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", flagLogLevel, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	database, err := db.OpenWith(args[0], db.Options{PageSize: flagPageSize, Logger: &logger})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	cli.NewREPL(database, os.Stdin, os.Stdout, os.Stderr).Run()
	return nil
}
