package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heritage-watch/heritage-cli/internal/api"
	"github.com/heritage-watch/heritage-cli/internal/heritage"
	"github.com/heritage-watch/heritage-cli/internal/refresh"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP resolution server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hist, err := openHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "serve: open history store")
		}
		if hist != nil {
			defer hist.Close()
		}

		store := heritage.NewStore()
		refresher := refresh.New(manifestSource(), store, cfg.Refresh.Interval,
			refresh.WithCellMeters(cfg.Engine.MaxRadiusMeters))

		// Warm the snapshot before accepting traffic. A failed initial load
		// is not fatal: the server starts in a warming state and the
		// refresher keeps retrying, so a transient dataset problem does not
		// block deployment.
		if err := refresher.RefreshNow(ctx); err != nil {
			zap.L().Warn("serve: initial dataset load failed, starting unready", zap.Error(err))
		}

		var recorder heritage.Recorder
		if hist != nil {
			recorder = hist
		}
		svc := newService(store, recorder)

		server := api.NewServer(svc, api.Config{
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return refresher.Run(gCtx)
		})
		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			zap.L().Info("serve: listening",
				zap.Int("port", port),
				zap.Bool("snapshot_ready", store.Ready()),
			)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		})

		if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
