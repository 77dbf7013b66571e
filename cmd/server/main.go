// Command server runs one relaywire/chat process: an HTTP listener
// serving the WebSocket gateway, health probe and Prometheus metrics.
// Cobra wiring follows longregen-alicia's cmd/alicia structure
// (rootCmd + serveCmd) per SPEC_FULL.md §B.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/auth"
	"github.com/relaywire/chat/internal/bus/redisbus"
	"github.com/relaywire/chat/internal/config"
	"github.com/relaywire/chat/internal/dispatcher"
	"github.com/relaywire/chat/internal/httpapi"
	"github.com/relaywire/chat/internal/metrics"
	"github.com/relaywire/chat/internal/presence"
	"github.com/relaywire/chat/internal/registry"
	"github.com/relaywire/chat/internal/store/postgres"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "chatcore-server",
		Short: "Run the relaywire chat core server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("server: build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("server: load config: %w", err)
	}

	st := postgres.New(cfg.PostgresDSN)
	if err := st.Open(ctx); err != nil {
		return fmt.Errorf("server: open store: %w", err)
	}
	defer st.Close()
	log.Info("store connected", zap.String("dsn_host", cfg.PostgresDSN))

	b, err := redisbus.New(cfg.RedisAddr, log)
	if err != nil {
		return fmt.Errorf("server: connect bus: %w", err)
	}
	defer b.Close()
	log.Info("fan-out bus connected", zap.String("addr", cfg.RedisAddr))

	gate, err := auth.NewGate([]byte(cfg.AuthSigningKey))
	if err != nil {
		return fmt.Errorf("server: build auth gate: %w", err)
	}

	reg := registry.New(b, log)
	pres := presence.New(st, cfg.PresenceWindow)
	m := metrics.New(prometheus.DefaultRegisterer)

	disp := dispatcher.New(st, b, reg, pres, m, dispatcher.Config{
		EditWindow:     cfg.EditWindow,
		PresenceWindow: cfg.PresenceWindow,
	}, log)

	reg.OnUserOffline = disp.BroadcastOffline

	api := httpapi.New(gate, reg, disp, st, m, prometheus.DefaultRegisterer, httpapi.Config{
		SendQueueSize:        cfg.SendQueueSize,
		MaxFrameBytes:        cfg.MaxFrameBytes,
		FrameFaultRatePerSec: cfg.FrameFaultRatePerSec,
		FrameFaultBurst:      cfg.FrameFaultBurst,
	}, log)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		serverErrors <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
