package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"harvest/scraper/internal/config"
	"harvest/scraper/internal/container"
	"harvest/scraper/internal/pipeline"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "harvester",
	Short:         "Walk paginated sources and enrich every item they list",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full harvest: enumerate, collect, enrich",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return execute(cmd.Context(), func(ctx context.Context, app *container.Container) (*pipeline.Report, error) {
			return app.Run(ctx)
		})
	},
}

var retrySources bool

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Replay the failure ledger of a previous run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return execute(cmd.Context(), func(ctx context.Context, app *container.Container) (*pipeline.Report, error) {
			return app.Retry(ctx, retrySources)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
	retryCmd.Flags().BoolVar(&retrySources, "sources", false, "retry failed sources instead of failed items")
	rootCmd.AddCommand(runCmd, retryCmd)
}

func execute(ctx context.Context, op func(context.Context, *container.Container) (*pipeline.Report, error)) error {
	// Load configuration using viper
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Info("Configuration loaded successfully")

	// Initialize container with all dependencies
	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warnf("⚠️ Shutdown finished with errors: %v", err)
		}
	}()

	report, err := op(ctx, app)
	if err != nil {
		return err
	}
	report.Log()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Errorf("❌ %v", err)
		stop()
		os.Exit(1)
	}
}
