package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/config"
	"clipguard/internal/detector"
	"clipguard/internal/framesource"
	"clipguard/internal/queue"
	"clipguard/internal/registry"
	"clipguard/internal/sampler"
	"clipguard/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

// application wires the full detection stack. Subcommands share one
// instance built in the root's PersistentPreRun.
type application struct {
	cfg      *config.Config
	store    *store.Store
	registry *registry.Registry
	queue    *queue.Queue
	detector *detector.Detector
}

func (a *application) openSource(path string) (sampler.Source, error) {
	return framesource.New(path, framesource.WithBinaries(a.cfg.FFmpegBin, a.cfg.FFprobeBin)), nil
}

var (
	app       *application
	storePath string
	logDebug  bool
)

var rootCmd = &cobra.Command{
	Use:     "clipguard",
	Short:   "Perceptual fingerprinting and blocklist matching for video clips",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if logDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg := config.Load()
		if storePath != "" {
			cfg.StorePath = storePath
		}

		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open blocklist store: %w", err)
		}

		reg := registry.New()
		if err := st.SyncRegistry(cmd.Context(), reg); err != nil {
			_ = st.Close()
			return fmt.Errorf("load blocklist: %w", err)
		}

		q := queue.New(cfg.MaxConcurrent, cfg.JobTimeout())
		app = &application{
			cfg:      cfg,
			store:    st,
			registry: reg,
			queue:    q,
			detector: detector.New(cfg, q, sampler.New(), reg, st),
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			// Let in-flight jobs settle before closing the store.
			waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = app.queue.Wait(waitCtx)
			_ = app.store.Close()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Blocklist database path (default: CLIPGUARD_STORE_PATH or clipguard.db)")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "Enable debug logging")
}
