package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/shotdiff/internal/artifacts"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/server"
	"github.com/GriffinCanCode/shotdiff/internal/suite"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		suitePath string
		withCap   bool
		publish   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review server",
		Long: `Serves comparisons over HTTP and streams run progress over a websocket.

  GET  /healthcheck
  POST /api/compare      {"id": "home.png"}
  POST /api/runs         run the --suite manifest
  GET  /api/runs/latest
  GET  /api/runs/{id}
  GET  /api/artifacts/latest
  GET  /ws`,
		Example: `  shotdiff serve --suite suite.yaml --capture`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}

			var s *suite.Suite
			if suitePath != "" {
				loaded, err := suite.Load(suitePath)
				if err != nil {
					return usageError(err)
				}
				s = loaded
			}

			opts := runner.Options{}
			if withCap {
				c, err := a.capturer()
				if err != nil {
					return usageError(err)
				}
				defer func() { _ = c.Close() }()
				opts.Capturer = c
			}

			var pub *artifacts.Publisher
			if publish {
				p, err := a.publisher(cmd)
				if err != nil {
					return usageError(err)
				}
				pub = p
			}

			srv := server.New(server.Options{
				Runner:    a.runner(opts),
				Suite:     s,
				Publisher: pub,
				Logger:    a.log,
			})
			defer srv.Close()
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				a.log.Info("review server starting", "addr", addr, "suite", suitePath, "capture", withCap)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				a.log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					a.log.Error("http shutdown error", "error", err)
					return err
				}
				a.log.Info("shutdown complete")
				return nil
			case err := <-serverErr:
				return usageError(err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from SHOTDIFF_HTTP_ADDR)")
	cmd.Flags().StringVarP(&suitePath, "suite", "s", "", "suite manifest enabling POST /api/runs")
	cmd.Flags().BoolVar(&withCap, "capture", false, "capture screenshots with a browser during runs")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload review bundles of failing runs")

	return cmd
}
