package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/kepler/internal/config"
	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/ingest"
	"github.com/MikeSquared-Agency/kepler/internal/processor"
	"github.com/MikeSquared-Agency/kepler/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate an insight from a directory of feedback exports",
		Long: `Load every recognized export in a directory and run one analysis.

Files are matched by name prefix: tickets, nps, csat, playstore or
reviews, instagram, linkedin (csv, json or yaml). Business context is
read from context/*.md|txt and the team from team.json|yaml.

Examples:
  kepler analyze --dir ./feedback
  kepler analyze --dir ./feedback --cluster --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			source, _ := cmd.Flags().GetString("source")
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg := config.Load()
			if cmd.Flags().Changed("cluster") {
				cfg.Clustering, _ = cmd.Flags().GetBool("cluster")
			}
			setupLogging(cfg.LogLevel, os.Stderr)

			if source == "" {
				source = filepath.Base(filepath.Clean(dir))
			}
			loaded, err := ingest.LoadDir(dir, source)
			if err != nil {
				return fmt.Errorf("load %s: %w", dir, err)
			}
			for _, s := range loaded.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %s: %v\n", s.Path, s.Err)
			}

			a, err := newAgent(cfg, cfg.Clustering, slog.Default())
			if err != nil {
				return err
			}

			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			run, err := processor.New(a, slog.Default()).Analyze(ctx, processor.Request{
				SourceID: source,
				Input:    loaded.Input,
			})
			if err != nil {
				return err
			}
			for _, s := range loaded.Skipped {
				run.Warnings = append(run.Warnings, fmt.Sprintf("skipped %s: %v", filepath.Base(s.Path), s.Err))
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return err
				}
			} else {
				printRun(out, run, loaded)
			}

			if !run.Success {
				return fmt.Errorf("analysis failed: %s", run.Error)
			}
			return nil
		},
	}

	cmd.Flags().String("dir", ".", "Directory with feedback exports")
	cmd.Flags().String("source", "", "Source id for record ids (default: directory name)")
	cmd.Flags().Bool("cluster", false, "Group similar feedback with embeddings before sampling")
	cmd.Flags().Duration("timeout", 3*time.Minute, "Maximum time for the analysis")
	return cmd
}

func printRun(w io.Writer, run *store.Run, loaded *ingest.Result) {
	fmt.Fprintf(w, "Loaded %d files:", len(loaded.Files))
	for _, k := range feedback.Kinds {
		if n := run.SourceCounts[string(k)]; n > 0 {
			fmt.Fprintf(w, " %s=%d", k, n)
		}
	}
	fmt.Fprintln(w)

	if !run.Success {
		fmt.Fprintf(w, "✗ %s\n", run.Error)
		return
	}

	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintln(w, strings.TrimSpace(run.RawResponse))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	if md := run.Metadata; md != nil {
		fmt.Fprintf(w, "model %s · %d items · %d tokens · %dms\n",
			md.Model, md.ItemsAnalyzed, md.Usage.TotalTokens, md.DurationMS)
	}
	for _, warn := range run.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
