package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"clipguard/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket detection server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := app.cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(app.detector, app.store, app.openSource)

		httpServer := &http.Server{
			Addr:         addr,
			Handler:      srv.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("clipguard server starting", "addr", addr, "store", app.cfg.StorePath)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		slog.Info("shutting down...")
		app.queue.Clear("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		slog.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: CLIPGUARD_LISTEN_ADDR or :8741)")
	rootCmd.AddCommand(serveCmd)
}
