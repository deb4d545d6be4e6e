package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-playerswitch/internal/infra/notify"
	"github.com/edumarques81/stellar-playerswitch/internal/transport/httpapi"
	"github.com/edumarques81/stellar-playerswitch/internal/transport/socketio"
	"github.com/edumarques81/stellar-playerswitch/internal/version"
)

const shutdownTimeout = 5 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the switch API and push player changes to UI clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}

	cmd.Flags().String("address", ":3001", "Address to listen on")
	if err := c.v.BindPFlag("http.address", cmd.Flags().Lookup("address")); err != nil {
		log.Error().Err(err).Msg("Error binding address flag")
	}
	cmd.Flags().String("start-policy", "strict", "Start failure policy (strict or tolerant)")
	if err := c.v.BindPFlag("switch.start_policy", cmd.Flags().Lookup("start-policy")); err != nil {
		log.Error().Err(err).Msg("Error binding start-policy flag")
	}
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := c.cfg
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("  Audio Player Service Switch")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("address", cfg.HTTP.Address).
		Str("lock", cfg.Lock.Path).
		Str("init_dir", cfg.Switch.InitDir).
		Str("script_dir", cfg.Switch.ScriptDir).
		Str("start_policy", cfg.Switch.StartPolicy).
		Str("status_file", cfg.Status.File).
		Bool("dbus", cfg.Notify.DBus.Enabled).
		Bool("sudo", cfg.Process.Sudo != "").
		Msg("Configuration")

	d, err := newDaemon(ctx, cfg, c.opts)
	if err != nil {
		return err
	}
	defer d.Close()

	sock, err := socketio.NewServer(d.switcher, d.status, d.registry, cfg.HTTP.MaxSocketClients)
	if err != nil {
		return fmt.Errorf("failed to create Socket.io server: %w", err)
	}
	defer sock.Close()
	d.dispatcher.Add(notify.Named{Name: "socketio", Notifier: sock})

	opts := []httpapi.ServerOption{
		httpapi.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			httpapi.LoggingMiddleware,
			httpapi.RecoverMiddleware,
			httpapi.CORSMiddleware,
		),
		httpapi.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		httpapi.WithMetrics(d.metrics.Handler()),
		httpapi.WithSocketIO(sock),
	}
	if d.history != nil {
		opts = append(opts, httpapi.WithHistory(d.history))
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           httpapi.NewServer(d.switcher, d.status, d.registry, opts...),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Address).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}
