// Command embedctl runs the extraction pipeline from the terminal and prints
// JSON results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Embedkit/internal/config"
	"Embedkit/internal/core/fetch"
)

// Global flags
var (
	flagTimeout time.Duration
	flagDebug   bool
)

// cfg holds the loaded configuration (defaults < env < override file < flags).
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:               "embedctl",
	Short:             "Extract embed metadata from URLs",
	Version:           config.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVarP(&flagTimeout, "timeout", "t", 0, "Per-request timeout (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if flagDebug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagTimeout > 0 {
		cfg.ResponseTimeout = config.DurationFrom(flagTimeout)
	}
	return nil
}

func newEngine() *fetch.Engine {
	return fetch.NewEngine(
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithTimeout(cfg.ResponseTimeout.Duration),
		fetch.WithMaxRedirects(cfg.MaxRedirects),
	)
}

// commandContext bounds a whole command, which may issue several requests.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 4*cfg.ResponseTimeout.Duration)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
