package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/uristatus"
)

var probeCmd = &cobra.Command{
	Use:   "probe <image-url>",
	Short: "Print the format and dimensions of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prober := imageprobe.NewProber(newEngine(), imageprobe.WithTimeout(cfg.ResponseTimeout.Duration))

		ctx, cancel := commandContext(cmd)
		defer cancel()

		info, err := prober.Probe(ctx, args[0], imageprobe.Options{})
		if err != nil {
			return fmt.Errorf("probing %s: %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), info)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Print the final status code of a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := uristatus.NewChecker(newEngine(), uristatus.WithTimeout(cfg.ResponseTimeout.Duration))

		ctx, cancel := commandContext(cmd)
		defer cancel()

		status, err := checker.Check(ctx, args[0], uristatus.Options{})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), status)
	},
}
