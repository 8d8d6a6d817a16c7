package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/janisto/hello-server/internal/app"
	"github.com/janisto/hello-server/internal/platform/config"
	applog "github.com/janisto/hello-server/internal/platform/logging"
	"github.com/janisto/hello-server/internal/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, server.DefaultAddr)
	stop()
	os.Exit(code)
}

// run serves the application on addr until ctx is cancelled and returns the process exit code.
func run(ctx context.Context, addr string) int {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		applog.LogError(ctx, "config load failed", err)
		return 1
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		applog.LogWarn(ctx, "invalid LOG_LEVEL, using info", zap.String("level", cfg.LogLevel))
	}
	applog.SetProjectID(cfg.ProjectID)

	srv, err := server.Start(ctx, app.New(Version), addr)
	if err != nil {
		applog.LogError(ctx, "listen failed", err, zap.String("addr", addr))
		return 1
	}

	select {
	case err, ok := <-srv.Err():
		if ok && err != nil {
			applog.LogError(context.Background(), "serve failed", err, zap.String("addr", addr))
			return 1
		}
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
		return 1
	}
	applog.LogInfo(context.Background(), "server exited")
	return 0
}
