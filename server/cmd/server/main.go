package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/version"

	"github.com/larkbridge/larkbridge/server/internal/api"
	"github.com/larkbridge/larkbridge/server/internal/config"
	"github.com/larkbridge/larkbridge/server/internal/provider"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	watch := flag.Bool("watch", true, "log when the config file changes on disk")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("larkbridge starting",
		"config", *configPath,
		"version", version.Version,
		"revision", version.Revision,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"http_timeout", cfg.Server.HTTPTimeout.String(),
		"utc_offset", cfg.Server.UTCOffset,
		"providers", len(cfg.Providers),
	)

	reg, err := provider.NewRegistry(cfg.Providers, provider.Options{
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.Server.HTTPTimeout)},
		Location:   cfg.Server.Location(),
	})
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Chat audits and user-cache eviction.
	reg.Start(ctx)

	// Providers are fixed for the life of the process; edits only take
	// effect after a restart.
	if *watch {
		go func() {
			err := config.Watch(ctx, *configPath, func(*config.Config) {
				slog.Warn("config file changed; restart to apply provider changes", "path", *configPath)
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.New(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("larkbridge shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
