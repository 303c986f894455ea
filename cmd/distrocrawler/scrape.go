package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScrapeCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one scrape and writes the snapshot",
		Long: `Runs the full pipeline once in the foreground. Individual distributions
that fail are skipped; the command fails only when the snapshot cannot be stored.`,
		Annotations: map[string]string{scrapedByAnnotation: "cli"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Runner().RunNow(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("run scrape: %w", err)
			}
			meta := res.Snapshot.Metadata
			appInstance.Logger().Info("scrape finished",
				zap.String("run_id", res.RunID),
				zap.Int("total", res.Snapshot.Total),
				zap.Int("attempted", meta.Attempted),
				zap.Bool("fallback_used", meta.FallbackUsed),
				zap.Bool("partial", meta.Partial),
				zap.String("path", appInstance.Store().Path()),
			)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of ranked distributions to scrape (defaults to scraper.limit)")
	return cmd
}
