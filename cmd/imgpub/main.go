package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"imgpub/internal/app"
	"imgpub/internal/config"
	"imgpub/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	c := config.NewConfig()
	if err := config.Init(c); err != nil {
		log.Fatalf("config: %v", err)
	}

	sugar, err := logger.NewLogger(c.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	s := app.SelectStorage(c, sugar)
	defer func() {
		if err := s.Close(); err != nil {
			sugar.Errorw("close storage", "error", err)
		}
	}()

	server := app.CreateServer(c, app.NewHandler(c, s, sugar), sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("server shutdown", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Errorw("server stopped", "error", err)
	}
	sugar.Infow("server stopped")
}
