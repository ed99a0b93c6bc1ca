package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digital-clone/frontend/internal/session"
	"digital-clone/frontend/pkg/config"
	"digital-clone/frontend/pkg/di"
	"digital-clone/frontend/pkg/logger"
	"digital-clone/frontend/pkg/router"

	"github.com/sourcegraph/conc"
)

func main() {
	// Loads .env before reading the environment
	cfg := config.New()

	log := di.NewLogger(cfg)
	logger.SetGlobal(log)

	log.Info("Starting web front", "version", os.Getenv("APP_VERSION"), "backend", cfg.Backend.URL, "session_store", cfg.Session.Store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	wg := conc.NewWaitGroup()
	wg.Go(func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed")
			stop()
		}
	})
	wg.Go(func() { container.Hub.Run(ctx) })
	wg.Go(func() { container.RateLimiter.Run(ctx) })

	container.Health.Start(ctx)

	if container.GRPC != nil {
		wg.Go(func() {
			if err := container.GRPC.Serve(ctx, cfg.GRPC.Port); err != nil {
				log.LogError(err, "gRPC health server failed")
			}
		})
	}

	if container.DB != nil {
		wg.Go(func() { purgeSessions(ctx, container, time.Hour) })
	}

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	wg.Wait()

	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}

// purgeSessions deletes expired rows from the postgres session store
func purgeSessions(ctx context.Context, c *di.Container, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := session.PurgeExpired(ctx, c.DB)
			if err != nil {
				c.Logger.LogError(err, "Failed to purge expired sessions")
				continue
			}
			if n > 0 {
				c.Logger.Info("Purged expired sessions", "count", n)
			}
		}
	}
}
