package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"officesim/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath, autoTick string
	var autoMinutes int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the optional auto-ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			if cmd.Flags().Changed("addr") {
				s.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				s.cfg.Server.BasePath = basePath
			}
			if cmd.Flags().Changed("auto-tick") {
				s.cfg.Server.AutoTick = autoTick
			}
			if cmd.Flags().Changed("auto-tick-minutes") {
				s.cfg.Server.AutoTickMinutes = autoMinutes
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			runner, err := buildRunner(cmd.Context(), s, "serve")
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Runner:   runner,
				Repo:     s.repo(),
				BasePath: s.cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: s.cfg.Server.JWTSecret},
				Logger:   s.log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if interval := s.cfg.AutoTickInterval(); interval > 0 {
				minutes := s.cfg.Server.AutoTickMinutes
				if minutes <= 0 {
					minutes = 1
				}
				g.Go(func() error { return runner.Loop(ctx, interval, minutes) })
				s.log.Info("auto tick enabled", "interval", interval, "minutes", minutes)
			}
			if repo := s.repo(); repo != nil {
				if d := server.NewWebhookDispatcher(*repo, runner.RunInfo().ID, s.cfg.Webhooks, s.log); d != nil {
					d.Attach(runner)
					g.Go(func() error { return d.Run(ctx) })
				}
			} else if len(s.cfg.Webhooks) > 0 {
				s.log.Warn("webhooks need the journal; skipping", "webhooks", len(s.cfg.Webhooks))
			}

			fmt.Printf("Serving office simulator API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs, stream at %s/ws)\n",
				s.cfg.Server.Addr, s.cfg.Server.BasePath, s.cfg.Server.BasePath, s.cfg.Server.BasePath, s.cfg.Server.BasePath)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().StringVar(&autoTick, "auto-tick", "", "advance the simulation every interval (e.g. 1s); empty disables")
	cmd.Flags().IntVar(&autoMinutes, "auto-tick-minutes", 1, "simulated minutes per auto tick")
	return cmd
}
