package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "Parse a CSV report and print its totals as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return inspectReport(cmd, data, cfg.CSVDelimiter)
	},
}

func inspectReport(cmd *cobra.Command, data []byte, comma rune) error {
	snap, err := export.Decode(data, comma)
	if err != nil {
		return fmt.Errorf("parse report: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
