package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	syncer "github.com/ajitpratap0/tap-google-analytics/internal/sync"
	"github.com/ajitpratap0/tap-google-analytics/pkg/catalog"
	"github.com/ajitpratap0/tap-google-analytics/pkg/config"
	"github.com/ajitpratap0/tap-google-analytics/pkg/ga"
	"github.com/ajitpratap0/tap-google-analytics/pkg/logger"
	"github.com/ajitpratap0/tap-google-analytics/pkg/metrics"
	"github.com/ajitpratap0/tap-google-analytics/pkg/singer"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "tap-google-analytics",
		Short: "Singer tap for the Google Analytics Reporting API",
		Long: `tap-google-analytics extracts report data from the Google Analytics
Reporting API v4 and emits it as a Singer message stream on stdout.

It supports catalog discovery, incremental replication with resumable
per-window bookmarks, and configurable date batching.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tap-google-analytics v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile, catalogFile, stateFile, logLevel, metricsAddr string

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Generate the stream catalog and print it to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if err := initLogger(logLevel); err != nil {
				return err
			}
			return runDiscover(cmd.Context(), configFile)
		},
	}
	discoverCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to tap configuration JSON file (required)")
	discoverCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	_ = discoverCmd.MarkFlagRequired("config")
	root.AddCommand(discoverCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync selected streams and emit Singer messages on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if err := initLogger(logLevel); err != nil {
				return err
			}
			if metricsAddr != "" {
				errs := metrics.Serve(metricsAddr)
				go func() {
					if err := <-errs; err != nil {
						logger.Get().Error("metrics listener failed",
							zap.String("addr", metricsAddr), zap.Error(err))
					}
				}()
			}
			return runSync(cmd.Context(), configFile, catalogFile, stateFile)
		},
	}
	syncCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to tap configuration JSON file (required)")
	syncCmd.Flags().StringVar(&catalogFile, "catalog", "", "Path to catalog JSON file. Omitted: discover and sync every stream")
	syncCmd.Flags().StringVar(&stateFile, "state", "", "Path to state JSON file from a previous run")
	syncCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	syncCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus /metrics endpoint (disabled when empty)")
	_ = syncCmd.MarkFlagRequired("config")
	root.AddCommand(syncCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, syncer.ErrPartialSync) {
			fmt.Fprintln(os.Stderr, err)
		}
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func initLogger(level string) error {
	return logger.Init(logger.Config{Level: level, Encoding: "json"})
}

func newClient(ctx context.Context, configFile string) (*config.Config, *ga.Client, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	client, err := ga.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func runDiscover(ctx context.Context, configFile string) error {
	cfg, client, err := newClient(ctx, configFile)
	if err != nil {
		return err
	}

	cat, err := discoverCatalog(cfg, client)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cat)
}

func runSync(ctx context.Context, configFile, catalogFile, stateFile string) error {
	cfg, client, err := newClient(ctx, configFile)
	if err != nil {
		return err
	}

	var cat *catalog.Catalog
	if catalogFile != "" {
		cat, err = catalog.Load(catalogFile)
	} else {
		cat, err = discoverCatalog(cfg, client)
	}
	if err != nil {
		return err
	}

	state, err := singer.LoadState(stateFile)
	if err != nil {
		return err
	}

	log := logger.Get()
	log.Info("starting sync",
		zap.String("view_id", cfg.ViewID),
		zap.String("start_date", cfg.StartDate),
		zap.Int("streams", len(cat.Streams)))

	emitter := singer.NewEmitter(os.Stdout)
	return syncer.NewSyncer(cfg, cat, client, emitter, state).Run(ctx)
}

// discoverCatalog generates the catalog from the configured report
// definitions, falling back to the built-in defaults.
func discoverCatalog(cfg *config.Config, client *ga.Client) (*catalog.Catalog, error) {
	defs, err := catalog.LoadReportDefinitions(cfg.Reports)
	if err != nil {
		return nil, err
	}
	if err := catalog.ValidateDefinitions(defs, client); err != nil {
		return nil, err
	}
	return catalog.Generate(defs, client)
}
