package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/handler"
	"github.com/ivanov-nikolay/notes_storage/internal/library"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/metrics"
	"github.com/ivanov-nikolay/notes_storage/internal/storage"
	"github.com/ivanov-nikolay/notes_storage/internal/viewer"
)

// statsResetInterval период сброса суточных счетчиков загрузок по IP
const statsResetInterval = 24 * time.Hour

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить веб-сервер",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Init(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}
			defer logging.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	files, err := storage.NewFileStore(cfg.Storage.UploadRoot)
	if err != nil {
		return err
	}

	lib := library.New(files, be.records, cfg.AllowedSet())
	authHandler := auth.New(be.users, be.sessions, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL,
		auth.WithShareTTL(cfg.Auth.ShareTTL))
	renderer := viewer.New(files, authHandler, cfg.Viewer)
	limiter := handler.NewIPLimiter(cfg.Limits)

	srv := handler.NewServer(cfg, lib, renderer, authHandler, limiter)
	httpServer := handler.NewHTTPServer(cfg.Server.Addr, srv.Handler())

	servers := []*http.Server{httpServer}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		servers = append(servers, handler.NewHTTPServer(cfg.Metrics.Addr, mux))
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		g.Go(func() error {
			logging.Info("listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return limiter.ResetIPStats(gctx, statsResetInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logging.Error("server stopped with error", zap.Error(err))
		return err
	}
	logging.Info("server stopped")
	return nil
}
