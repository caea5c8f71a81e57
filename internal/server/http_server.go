package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Tyrowin/roomchat/internal/logging"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer blocks serving HTTP until the server is shut down.
func StartServer(server *http.Server, log logging.Logger) error {
	log.Info(context.Background(), "server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info(ctx, "shutting down http server")
	if err := server.Shutdown(ctx); err != nil {
		log.Error(ctx, "http server shutdown error", "error", err)
		return err
	}

	log.Info(ctx, "http server shutdown completed")
	return nil
}
