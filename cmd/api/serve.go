package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stationplan/internal/api"
	"stationplan/internal/config"
	"stationplan/internal/logger"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the webhook worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return err
	}
	log := logger.New("api")

	srv, err := api.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Errorf("server close: %v", err)
		}
	}()

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		srv.NewWebhookWorker().Run(workerCtx)
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	hs := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutMs) * time.Millisecond,
	}
	errc := make(chan error, 1)
	go func() {
		log.Infof("API listening on %s", cfg.Server.Addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Infof("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutCtx)
}
