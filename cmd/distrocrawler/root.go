package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/app"
	"github.com/JakeFAU/distro-catalog-crawler/internal/config"
	"github.com/JakeFAU/distro-catalog-crawler/internal/logging"
)

// scrapedByAnnotation names the value stamped into snapshot metadata by a command.
const scrapedByAnnotation = "scraped_by"

type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It is a variable so tests can swap it.
var newApp = app.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "distrocrawler",
		Short: "Scrapes the DistroWatch popularity ranking into a JSON snapshot.",
		Long: `distrocrawler builds a snapshot of the most popular Linux distributions.
It reads the monthly ranking, visits each distribution's detail page through a
rotating proxy pool with a direct fallback, and stores the result as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, cmd.Annotations[scrapedByAnnotation], logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env DISTRO_* overrides apply either way)")
	cmd.AddCommand(newServeCmd(), newScrapeCmd(), newStatusCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

func execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "distrocrawler:", err)
		return 1
	}
	return 0
}
