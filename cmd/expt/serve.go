package main

import (
	"context"
	"errors"
	"github.com/jnb666/trafficsigns/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reports over HTTP",
		Long:  "Serves the configured reports, reloading the page when a report file changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if listen != "" {
				a.settings.Listen = listen
			}
			srv, err := web.NewServer(ctx, a.settings, a.log)
			if err != nil {
				return err
			}
			defer srv.Close()

			hs := &http.Server{Addr: a.settings.Listen, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			errc := make(chan error, 1)
			go func() {
				a.log.Info("serving web page", zap.String("addr", a.settings.Listen))
				errc <- hs.ListenAndServe()
			}()
			select {
			case err = <-errc:
			case <-ctx.Done():
				a.log.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				err = hs.Shutdown(sctx)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}
