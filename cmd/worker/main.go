// Snapshot worker for KinKeep. It follows the member event topic and keeps
// an up-to-date export of the family record in object storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
)

const (
	defaultWorkerConfigPath = "configs/kinkeep.yaml"
	startupTimeout          = 30 * time.Second
	shutdownTimeout         = 10 * time.Second
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	group := flag.String("group", "", "consumer group (overrides worker.group_id)")
	quiet := flag.Duration("quiet", 0, "quiet period before a snapshot (overrides worker.quiet_period)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *group != "" {
		cfg.Worker.GroupID = *group
	}
	if *quiet > 0 {
		cfg.Worker.QuietPeriod = *quiet
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "kinkeep worker: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.brokers and kafka.topic are required")
	}

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	container, err := bootstrap.New(startCtx, cfg, logger, bootstrap.Options{Source: "worker", Metrics: true})
	cancel()
	if err != nil {
		logger.Error("failed to initialise dependencies", logging.Err(err))
		return err
	}
	defer container.Close()

	format, err := family.ParseExportFormat(cfg.Worker.SnapshotFormat)
	if err != nil {
		return err
	}

	var publisher exportPublisher
	if snapshotsEnabled(cfg) {
		publisher = container.Service
	} else {
		logger.Warn("export storage not configured; events will only be counted")
	}
	snaps := newSnapshotter(publisher, format, cfg.Worker.QuietPeriod, newWorkerMetrics(container.Collector), logger.Named("snapshot"))

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Worker.GroupID,
		Topic:   cfg.Kafka.Topic,
	}, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info("starting KinKeep worker",
		logging.String("group", cfg.Worker.GroupID),
		logging.String("topic", cfg.Kafka.Topic),
		logging.String("format", string(format)),
		logging.Duration("quiet", cfg.Worker.QuietPeriod))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	healthSrv := startHealthServer(cfg.Worker.HealthPort, container, snaps, logger)

	var wg sync.WaitGroup
	if publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps.Run(ctx)
		}()
	}
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- consumer.Run(ctx, snaps.Handle)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer stopped", logging.Err(err))
		}
	}

	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("KinKeep worker stopped")
	return nil
}

func snapshotsEnabled(cfg *config.Config) bool {
	return cfg.MinIO.Exports || cfg.Storage.Backend == config.BackendMinIO
}

// healthMux serves liveness, readiness with the container's probes, the last
// snapshot, and the metrics endpoint when metrics are on.
func healthMux(c *bootstrap.Container, snaps *snapshotter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		for _, check := range c.Checks {
			if err := check.Fn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "%s: %v", check.Name, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		last := snaps.Last()
		if last == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(last)
	})
	if c.Collector != nil {
		path := c.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, c.Collector.Handler())
	}
	return mux
}

func startHealthServer(port int, c *bootstrap.Container, snaps *snapshotter, logger logging.Logger) *http.Server {
	if port <= 0 {
		port = config.DefaultWorkerHealthPort
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           healthMux(c, snaps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server listening", logging.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()

	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	fmt.Fprintf(os.Stderr, "config file %s not found, using defaults and environment\n", path)
	return config.LoadFromEnv()
}
