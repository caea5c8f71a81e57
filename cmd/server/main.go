package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := server.NewConfigFromEnv()
	log := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "starting RoomChat server", "port", cfg.Port, "durable", cfg.DatabaseURL != "")

	mgr, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "open storage", "error", err)
		return 1
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn(context.Background(), "close storage", "error", err)
		}
	}()

	srv := server.New(cfg, mgr, log)
	srv.Start()

	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, log)
	}()

	code := 0
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "http server failed", "error", err)
			code = 1
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		code = 1
	}
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn(context.Background(), "hub shutdown incomplete", "error", err)
	}
	return code
}
