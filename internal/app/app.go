package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"playroom/server"
	"playroom/server/internal/config"
	"playroom/server/internal/leaderboard"
	servernet "playroom/server/internal/net"
	"playroom/server/logging"
	loggingsinks "playroom/server/logging/sinks"
)

// Run wires the logging router, leaderboard store, hub and HTTP surface,
// then serves until the context is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.Default()

	logConfig := logging.DefaultConfig()
	if len(cfg.LogSinks) > 0 {
		logConfig.EnabledSinks = cfg.LogSinks
	}

	namedSinks := make([]logging.NamedSink, 0, 2)
	if logConfig.HasSink("console") {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "console",
			Sink: loggingsinks.NewConsoleSink(os.Stdout, logConfig.Console),
		})
	}
	if logConfig.HasSink("json") && cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open json log: %w", err)
		}
		defer file.Close()
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingsinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(nil, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	var scores leaderboard.Store = leaderboard.NewMemory()
	if cfg.RedisURL != "" {
		redisStore, err := leaderboard.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect leaderboard store: %w", err)
		}
		scores = redisStore
	}
	defer scores.Close()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Logger = logger
	hubCfg.Leaderboard = scores
	hubCfg.KeyframeInterval = cfg.KeyframeIntervalTicks

	hub := server.NewHubWithConfig(hubCfg, router)
	stop := make(chan struct{})
	go hub.RunLoop(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:  cfg.ClientDir,
		Logger:     logger,
		AuthSecret: cfg.AuthSecret,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	logger.Printf("server listening on %s", srv.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
