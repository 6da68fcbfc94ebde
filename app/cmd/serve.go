package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fths/urldex/internal/query"
	"github.com/fths/urldex/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var reloadInterval int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wire API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parseFlags(cmd, map[string]any{
				"addr":            &addr,
				"reload-interval": &reloadInterval,
			})

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log := slog.Default()

			engine, err := query.Open(cfg)
			if err != nil {
				return fmt.Errorf("failed to open query engine: %w", err)
			}
			defer engine.Close()

			srv := server.New(engine, cfg, log)
			httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if reloadInterval > 0 {
				go pollReload(ctx, srv, time.Duration(reloadInterval)*time.Second, log)
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := httpSrv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
			}
			return nil
		},
	}

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().Int("reload-interval", 0, "seconds between manifest reload polls; 0 disables polling")

	return serveCmd
}

func pollReload(ctx context.Context, srv *server.Server, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.Reload(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("reload poll failed", "err", err)
			}
		}
	}
}

var serveCmd = newServeCmd()

func init() {
	rootCmd.AddCommand(serveCmd)
}
