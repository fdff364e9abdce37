package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/aretw0/bpmnchat/pkg/adapters/http"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// NewHTTPHandler builds the chat API for st. A zero maxInputSize keeps the sanitizer default.
func NewHTTPHandler(st *Stack, maxInputSize int, version string) http.Handler {
	opts := []httpadapter.Option{
		httpadapter.WithInventory(st.Inventory),
		httpadapter.WithLogger(st.Logger),
		httpadapter.WithVersion(version),
	}
	if maxInputSize > 0 {
		opts = append(opts, httpadapter.WithMaxInputSize(maxInputSize))
	}
	if st.Registry != nil {
		opts = append(opts, httpadapter.WithMetrics(st.Registry))
	}
	return httpadapter.NewHandler(st.Manager, opts...)
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, st *Stack) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		st.Logger.Info("HTTP server listening", "address", addr, "process", st.Engine.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		st.Logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			st.Logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		return nil
	}
}
