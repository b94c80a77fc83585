package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alexlup06-authgate/memberauth-go/internal/observability"
	"github.com/alexlup06-authgate/memberauth-go/internal/portal"
)

var portalAddr string

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Serve the local member portal",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := portalAddr
		if addr == "" {
			addr = cfg.PortalAddr
		}

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

		sdk, closer, err := openSDK(cmd.Context(), metrics)
		if err != nil {
			return err
		}
		defer closer()

		server := &http.Server{
			Addr:              addr,
			Handler:           portal.New(sdk, portal.WithMetrics(metrics, prometheus.DefaultGatherer)).Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		observability.Info("portal listening", "addr", addr, "api_base", cfg.APIBase, "storage", cfg.Storage)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			observability.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(portalCmd)
	portalCmd.Flags().StringVar(&portalAddr, "addr", "", "Listen address (defaults to portal_addr from config)")
}
