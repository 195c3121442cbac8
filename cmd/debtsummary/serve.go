package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-debt-summary/pkg/di"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the batch aggregator on its interval and expose metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withContainer(open, func(c *di.Container) error {
				return serve(ctx, c)
			})
		},
	}
}

func serve(ctx context.Context, c *di.Container) error {
	log := c.Logger()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := c.Aggregator().Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	addr := c.Config().MetricsAddr
	if addr != "" {
		server := &http.Server{
			Addr:         addr,
			Handler:      newRouter(c),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("metrics server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			log.Info().Msg("metrics server shutting down")
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

type healthView struct {
	State    string    `json:"state"`
	LastPass *passView `json:"last_pass,omitempty"`
}

func newRouter(c *di.Container) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Metrics().Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		view := healthView{State: c.Aggregator().State().String()}
		if res, ok := c.Aggregator().LastPass(); ok {
			pv := newPassView(res)
			view.LastPass = &pv
		}
		w.Header().Set("Content-Type", "application/json")
		_ = writeJSON(w, view)
	})
	return mux
}
