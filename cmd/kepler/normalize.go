package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/normalize"
)

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Convert one raw export into typed feedback records",
		Long: `Decode a CSV, JSON or YAML export and print the normalized records
as JSON. Useful to check column mapping before running an analysis.

Examples:
  kepler normalize --kind tickets --file tickets.csv
  kepler normalize --kind nps --file nps.json --source typeform`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kindName, _ := cmd.Flags().GetString("kind")
			path, _ := cmd.Flags().GetString("file")
			source, _ := cmd.Flags().GetString("source")
			formatName, _ := cmd.Flags().GetString("format")

			kind, err := feedback.ParseKind(kindName)
			if err != nil {
				return err
			}
			var format normalize.Format
			if formatName != "" {
				format, err = normalize.ParseFormat(formatName)
			} else {
				format, err = normalize.FormatFromPath(path)
			}
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			records, err := normalize.Normalize(raw, format, kind, source)
			if err != nil {
				return err
			}
			if records == nil {
				records = []feedback.Record{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}

	cmd.Flags().String("kind", "", "Feedback kind (tickets, nps, csat, playstore, instagram, linkedin)")
	cmd.Flags().String("file", "", "Path to the export")
	cmd.Flags().String("format", "", "csv, json or yaml (default: from the file extension)")
	cmd.Flags().String("source", "cli", "Source id for record ids")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
