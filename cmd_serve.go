package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, WebSocket and configured chat channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(configPath)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			app.cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app.RegisterConfiguredChannels()
		app.chanMgr.Route(ctx, app.companion)
		if err := app.chanMgr.StartAll(ctx); err != nil {
			log.Printf("warning: %v", err)
		}

		srv := app.Server()
		errCh := make(chan error, 1)
		go func() {
			log.Printf("[server] listening on %s", app.cfg.Server.Addr)
			errCh <- srv.Start()
		}()

		var serveErr error
		select {
		case <-ctx.Done():
		case serveErr = <-errCh:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("warning: server shutdown: %v", err)
		}
		app.Close(shutdownCtx)

		if serveErr != nil {
			return fmt.Errorf("serve: %w", serveErr)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
