// Package cmd defines and implements the CLI commands for the movierank executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/app"
	"github.com/JakeFAU/movierank/internal/config"
	"github.com/JakeFAU/movierank/internal/importer"
	"github.com/JakeFAU/movierank/internal/logging"
	"github.com/JakeFAU/movierank/internal/report"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey   appKeyType = "app"
	ownerKey appKeyType = "owner"
)

// appOwner records the App built for one execution so execute can close it
// whether or not the command succeeded.
type appOwner struct {
	app App
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetImporter() *importer.Importer
	GetReports() *report.Generator
	Crawl(ctx context.Context, codes []string) (app.CrawlResult, error)
	Migrate(ctx context.Context) error
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "movierank",
		Short: "Scrapes per-country movie rankings and serves them.",
		Long: `movierank scrapes the top-ranked movies for a list of countries, imports
them into a normalized ranking store, and serves per-country top lists and
HTML reports over HTTP.`,
		SilenceUsage: true,

		// Builds the application after flags are parsed and before the subcommand runs.
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

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			if owner, ok := cmd.Context().Value(ownerKey).(*appOwner); ok {
				owner.app = appInstance
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); MOVIERANK_* env vars override it")

	cmd.AddCommand(
		newServeCmd(),
		newCrawlCmd(),
		newImportCmd(),
		newReportCmd(),
		newMigrateCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// execute runs root and closes the App it built. cobra skips post-run hooks
// when RunE fails, so closing happens here instead.
func execute(ctx context.Context, root *cobra.Command) error {
	owner := &appOwner{}
	err := root.ExecuteContext(context.WithValue(ctx, ownerKey, owner))
	if owner.app != nil {
		owner.app.Close()
	}
	return err
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx, newRootCmd())
	stop()
	if err != nil {
		os.Exit(1)
	}
}
