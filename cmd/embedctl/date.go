package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"Embedkit/internal/core/normalize"
)

var dateCmd = &cobra.Command{
	Use:   "date <value>...",
	Short: "Normalize dates or epochs to the canonical UTC form",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := make(map[string]*string, len(args))
		for _, arg := range args {
			out[arg] = normalize.NormalizeDate(dateValue(arg))
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

// dateValue treats purely numeric arguments as epochs.
func dateValue(arg string) any {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return arg
	}
	if strings.Trim(arg, "0123456789.") == "" {
		return json.Number(arg)
	}
	return arg
}
