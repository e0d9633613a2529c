package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parseflow",
	Short: "Run the document extraction pipeline from the command line",
	Long: `parseflow drives the same split / process / combine stages the deployed
functions run, against the configured project and bucket, without a
workflow execution in between. Useful for local runs and debugging.`,
	SilenceUsage: true,
}

func main() {
	// A .env beside the binary keeps local runs configured the same way the
	// deployed functions are. Missing file is fine.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file.")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	rootCmd.AddCommand(newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
