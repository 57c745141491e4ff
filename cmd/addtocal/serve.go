package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appLog "addtocal/internal/log"
	"addtocal/internal/web"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session HTTP API",
		Long: `Run the session HTTP API.

Each browser tab creates a session (POST /api/sessions), submits text,
reviews and edits the extracted draft, confirms it and follows the returned
link. Idle sessions are discarded on the configured sweep schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := loadRuntime(root)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", loc.String(),
				"model", cfg.Extractor.Model,
				"standard_minutes", cfg.Durations.StandardMinutes,
				"short_minutes", cfg.Durations.ShortMinutes,
				"session_ttl", cfg.SessionTTL().String(),
				"sweep", cfg.SweepCron,
				"cors_origins", len(cfg.CORSOrigins),
			)

			store := web.NewStore(newControllerFactory(cfg, loc, newExtractor(cfg)), cfg.SessionTTL())
			sweeper, err := store.NewSweeper(cfg.SweepCron)
			if err != nil {
				appLog.Error("invalid sweep schedule", err, "sweep", cfg.SweepCron)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return web.NewServer(cfg, store).ListenAndServe(ctx)
			})
			g.Go(func() error {
				sweeper.Start()
				<-ctx.Done()
				<-sweeper.Stop().Done()
				return nil
			})

			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("server stopped", err)
				return err
			}
			appLog.Info("addtocal exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")

	return cmd
}
