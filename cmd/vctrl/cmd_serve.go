package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vctrl/vctrl/pkg/remote"
	"github.com/vctrl/vctrl/pkg/repo"
)

const defaultServeAddr = "127.0.0.1:8420"

func newServeCmd() *cobra.Command {
	var addr string
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve this repository over HTTP for fetch, pull, push and clone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if addr == "" {
				addr = defaultServeAddr
			}

			var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), nil)
			if jsonLogs {
				handler = slog.NewJSONHandler(cmd.ErrOrStderr(), nil)
			}
			logger := slog.New(handler).With(slog.String("repo", r.RootDir))

			gin.SetMode(gin.ReleaseMode)
			srv := remote.NewServer(r, remote.ServerOptions{Auth: cfg.Server, Logger: logger})

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			httpServer := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpServer.Serve(ln)
			}()
			logger.Info("serving",
				slog.String("addr", ln.Addr().String()),
				slog.Bool("auth", len(cfg.Server.Tokens) > 0 || len(cfg.Server.Users) > 0),
			)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default [server] addr or "+defaultServeAddr+")")
	cmd.Flags().BoolVar(&jsonLogs, "json", os.Getenv("VCTRL_LOG_FORMAT") == "json", "log as JSON")

	return cmd
}
