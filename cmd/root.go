package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docverify/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docverify",
	Short: "docverify - document validation and visual verification service",
	Long: `docverify exposes an HTTP service that validates uploaded documents
against caller-supplied expected data using OCR, and verifies a reference
image against a source image or video using visual embeddings.

Run "docverify serve" to start the HTTP server.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docverify executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
