// Command gateway is the industrial IoT gateway's entrypoint: it loads
// configuration from the environment, opens the persistence store, builds
// the plugin registry and manager, restores persisted state, starts the
// manager's background workers, and serves the HTTP surface until asked to
// shut down. Mirrors the shape of the teacher's cmd/gateway/main.go (config
// -> dependencies -> router -> graceful shutdown), minus the JWT/wallet
// auth layer, which has no equivalent concern in this domain.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/config"
	"github.com/neuron-gateway/gateway/infrastructure/logging"
	"github.com/neuron-gateway/gateway/infrastructure/metrics"
	"github.com/neuron-gateway/gateway/internal/httpapi"
	"github.com/neuron-gateway/gateway/internal/manager"
	"github.com/neuron-gateway/gateway/internal/persistence"
	"github.com/neuron-gateway/gateway/internal/registry"
)

func main() {
	logger := logging.NewFromEnv("gateway")
	ctx := context.Background()

	dsn := config.RequireEnv("GATEWAY_DATABASE_DSN")
	store, err := persistence.Open(ctx, dsn)
	if err != nil {
		logger.Fatal(ctx, "failed to open persistence store", err)
	}
	defer store.Close()

	var m *metrics.Metrics
	if metrics.Enabled() {
		m = metrics.New("gateway")
	}

	// The registry is created empty here and nothing in this repository
	// adds a plugin to it (concrete protocol plugins are out of scope), so
	// AddNode/Restore have nothing to instantiate.
	reg := registry.New()

	mgr := manager.New(reg, store, logger, m)
	if err := mgr.Restore(ctx); err != nil {
		logger.Fatal(ctx, "failed to restore persisted state", err)
	}
	if err := mgr.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start manager", err)
	}

	router := httpapi.NewRouter(mgr, logger)
	srv := &http.Server{
		Addr:         ":" + config.GetEnv("GATEWAY_HTTP_PORT", "8080"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info(ctx, "gateway HTTP surface listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server failed", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info(ctx, "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", err, nil)
	}
	mgr.Shutdown(shutdownCtx)
}
