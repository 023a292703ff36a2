// API server entry point for KinKeep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/KinKeep/internal/interfaces/http"
	"github.com/turtacn/KinKeep/internal/interfaces/http/handlers"
	"github.com/turtacn/KinKeep/internal/interfaces/http/middleware"
)

const (
	defaultConfigPath = "configs/kinkeep.yaml"
	startupTimeout    = 30 * time.Second
	limiterIdleAfter  = 10 * time.Minute
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *httpPort); err != nil {
		fmt.Fprintf(os.Stderr, "kinkeep apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort int) error {
	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logger.Info("starting KinKeep API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("built", buildDate),
		logging.String("addr", cfg.Server.Addr()),
		logging.String("backend", cfg.Storage.Backend),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	container, err := bootstrap.New(startCtx, cfg, logger, bootstrap.Options{Source: "apiserver", Metrics: true})
	cancel()
	if err != nil {
		logger.Error("failed to initialise dependencies", logging.Err(err))
		return err
	}
	defer container.Close()

	gin.SetMode(cfg.Server.Mode)
	router := httpserver.NewRouter(routerConfig(container))
	server := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	if fromFile {
		config.Watch(configPath, func(next *config.Config) {
			if logging.SetLevel(logger, next.Log.Level) {
				logger.Info("log level reloaded", logging.String("level", next.Log.Level))
			}
		}, func(err error) {
			logger.Warn("ignoring invalid configuration change", logging.Err(err))
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", logging.Err(err))
			return err
		}
	}

	if err := server.Stop(context.Background()); err != nil {
		return err
	}
	logger.Info("KinKeep API server stopped")
	return nil
}

func routerConfig(c *bootstrap.Container) httpserver.RouterConfig {
	cfg := c.Config

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Metrics.Path != "" {
		logCfg.SkipPaths = append(logCfg.SkipPaths, cfg.Metrics.Path)
	}

	rc := httpserver.RouterConfig{
		MemberHandler:    handlers.NewMemberHandler(c.Service),
		StoryHandler:     handlers.NewStoryHandler(c.Service),
		HealthHandler:    handlers.NewHealthHandler(version, healthCheckers(c.Checks)...),
		CORS:             cors,
		Logging:          logCfg,
		MaxBodySize:      cfg.Server.MaxBodySize,
		Logger:           c.Logger,
		Metrics:          c.Metrics,
		MetricsCollector: c.Collector,
		MetricsPath:      cfg.Metrics.Path,
	}
	if cfg.Importer.RatePerMinute > 0 {
		rc.ImportLimiter = middleware.NewTokenBucketLimiter(cfg.Importer.RatePerMinute/60, cfg.Importer.Burst, limiterIdleAfter)
	}
	return rc
}

// loadConfig reads path when it exists and falls back to defaults and
// KINKEEP_* environment variables otherwise.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		return cfg, true, err
	}
	fmt.Fprintf(os.Stderr, "config file %s not found, using defaults and environment\n", path)
	cfg, err := config.LoadFromEnv()
	return cfg, false, err
}
