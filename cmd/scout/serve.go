package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trend-scout/internal/classify"
	"trend-scout/internal/metadata"
	"trend-scout/internal/session"
)

const shutdownTimeout = 5 * time.Second

var serveClientID string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream, classify and publish trend groups",
	Long: `Connects to the PumpPortal stream, groups new tokens by theme and tracks the
official target. Snapshots are served as JSON next to Prometheus metrics.

Example usage:
  scout serve                          # defaults, sqlite cache in ./scout.db
  scout serve --config scout.yaml      # explicit configuration
  DATABASE_URL=postgres://... scout serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveClientID, "client-id", "", "Identifier written with claimed records (random when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	be, err := openBackends(ctx, cfg, false, true, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	oracle, err := newOracle(cfg, logger)
	if err != nil {
		return err
	}

	api := newAPI(cfg)
	resolver := metadata.NewResolver(metadata.Options{
		Gateways:       cfg.Metadata.Gateways,
		Coins:          api,
		OverrideImage:  cfg.Target.Image,
		FetchTimeout:   cfg.Metadata.FetchTimeout,
		PreloadTimeout: cfg.Metadata.PreloadTimeout,
		Logger:         logger,
	})

	id := clientID(serveClientID)
	sess := session.New(session.Options{
		Feed:              newFeed(cfg, logger),
		Resolver:          resolver,
		Coins:             api,
		Price:             oracle,
		Classifier:        classify.New(cfg.Groups.Themes),
		Target:            targetConfig(cfg),
		Official:          be.official,
		Cache:             be.cache,
		Notifier:          notifier,
		ClientID:          id,
		IdentityCap:       cfg.Groups.IdentityCap,
		FlushInterval:     cfg.Session.FlushInterval,
		ReconcileInterval: cfg.Target.ReconcileInterval,
		CorrectionDelay:   cfg.Session.CorrectionDelay,
		Logger:            logger,
	})

	logger.Info().
		Str("client_id", id).
		Str("endpoint", cfg.Feed.Endpoint).
		Str("official_mint", cfg.Target.Mint).
		Strs("target_names", cfg.Target.Names).
		Msg("starting scout")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(sess.Run(gctx))
	})
	g.Go(func() error {
		oracle.Run(gctx)
		return nil
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newRouter(sess, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}
