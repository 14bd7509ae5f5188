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
	"golang.org/x/sync/errgroup"

	"sqlstress/internal/config"
	"sqlstress/internal/pool"
	"sqlstress/internal/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web UI and JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := settings.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		warn(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openPool(ctx, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		server, database := pool.Target(settings.Driver, settings.DSN)
		h := web.NewHandler(db, settings.RunDefaults(), web.Target{
			Driver:   settings.Driver,
			Server:   server,
			Database: database,
			DSN:      pool.MaskDSN(settings.DSN),
		}, logger)

		srv := &http.Server{
			Addr:              settings.ListenAddr,
			Handler:           web.NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	mustBind(config.KeyListenAddr, serveCmd.Flags().Lookup("addr"))
}
