// Package bootstrap builds the object graph shared by the API server, the
// worker and the CLI from a loaded configuration.
package bootstrap

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/database/postgres"
	redisstore "github.com/turtacn/KinKeep/internal/infrastructure/database/redis"
	"github.com/turtacn/KinKeep/internal/infrastructure/database/sqlite"
	"github.com/turtacn/KinKeep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/turtacn/KinKeep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KinKeep/internal/infrastructure/persistence"
	"github.com/turtacn/KinKeep/internal/infrastructure/storage/localfs"
	miniostore "github.com/turtacn/KinKeep/internal/infrastructure/storage/minio"
	"github.com/turtacn/KinKeep/internal/intelligence/storyparser"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// Options selects the optional parts of the graph.
type Options struct {
	// Source names the process in published events ("apiserver", "cli").
	Source string

	// Metrics registers application metrics with a fresh collector.
	Metrics bool
}

// Check is a named reachability probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Container owns every long-lived dependency. Close releases them in reverse
// order of creation.
type Container struct {
	Config     *config.Config
	Logger     logging.Logger
	Repository *persistence.DocumentRepository
	Store      *member.Store
	Service    family.Service
	Metrics    *prommetrics.AppMetrics
	Collector  prommetrics.MetricsCollector
	Checks     []Check

	postgres *postgres.Connection
	closers  []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: cfg.OutputPaths,
	})
}

// New opens the configured storage backend and assembles the family service.
// Optional integrations that are not configured are left out.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Container{Config: cfg, Logger: logger}

	if opts.Metrics && cfg.Metrics.Enabled {
		collector, err := prommetrics.NewMetricsCollector(prommetrics.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger.Named("metrics"))
		if err != nil {
			return nil, err
		}
		c.Collector = collector
		c.Metrics = prommetrics.NewAppMetrics(collector)
	}

	kv, locker, sink, err := c.openBackend()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Repository = persistence.NewDocumentRepository(kv, cfg.Storage.Key, logger)
	c.Store = member.NewStore(c.Repository, logger)
	if locker != nil {
		c.Store.WithLocker(locker)
	}
	if err := c.Repository.Ping(ctx); err != nil {
		c.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "storage backend unreachable")
	}
	c.Checks = append(c.Checks, Check{Name: "storage:" + cfg.Storage.Backend, Fn: c.Repository.Ping})

	svcOpts := []family.Option{family.WithMetrics(c.Metrics)}

	if parser := c.openParser(); parser != nil {
		svcOpts = append(svcOpts, family.WithParser(parser))
	}

	if sink == nil && cfg.MinIO.Exports {
		client, err := miniostore.NewClient(minioConfig(cfg.MinIO), logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		c.Checks = append(c.Checks, Check{Name: "exports", Fn: client.Ping})
		sink = client
	}
	if sink != nil {
		svcOpts = append(svcOpts, family.WithExportSink(sink))
	}

	if cfg.Kafka.Enabled {
		publisher, err := c.openPublisher(opts.Source)
		if err != nil {
			c.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, family.WithPublisher(publisher))
	}

	c.Service = family.NewService(c.Store, logger, svcOpts...)
	logger.Info("family service ready",
		logging.String("backend", cfg.Storage.Backend),
		logging.String("key", cfg.Storage.Key),
		logging.Bool("import", c.Config.Importer.Enabled && c.Config.Importer.APIKey != ""),
		logging.Bool("events", cfg.Kafka.Enabled),
		logging.Bool("exports", sink != nil))
	return c, nil
}

// openBackend returns the key-value store for the selected backend, a
// cross-process locker when the backend is shared, and the backend itself
// when it can also hold exports.
func (c *Container) openBackend() (persistence.KeyValueStore, member.Locker, family.ExportSink, error) {
	cfg := c.Config
	log := c.Logger

	switch cfg.Storage.Backend {
	case config.BackendFile:
		store, err := localfs.New(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, nil, nil

	case config.BackendMemory:
		log.Warn("memory backend selected, the family record will not survive a restart")
		return persistence.NewMemoryStore(), nil, nil, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(filepath.Join(cfg.Storage.DataDir, "kinkeep.db"), log)
		if err != nil {
			return nil, nil, nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil, nil, nil

	case config.BackendRedis:
		client, err := redisstore.NewClient(redisstore.Config{
			Mode:         cfg.Redis.Mode,
			Addr:         cfg.Redis.Addr,
			Addrs:        cfg.Redis.Addrs,
			MasterName:   cfg.Redis.MasterName,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return nil, nil, nil, err
		}
		c.closers = append(c.closers, client.Close)
		return redisstore.NewDocumentStore(client), redisstore.NewMutex(client, cfg.Storage.Key, log), nil, nil

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(PostgresConfig(cfg.Database), log)
		if err != nil {
			return nil, nil, nil, err
		}
		c.closers = append(c.closers, conn.Close)
		c.postgres = conn
		if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewDocumentStore(conn), nil, nil, nil

	case config.BackendMinIO:
		client, err := miniostore.NewClient(minioConfig(cfg.MinIO), log)
		if err != nil {
			return nil, nil, nil, err
		}
		c.closers = append(c.closers, client.Close)
		return client, nil, client, nil
	}

	return nil, nil, nil, errors.New(errors.ErrCodeBackendUnknown, "unknown storage backend").
		WithDetail(cfg.Storage.Backend)
}

// openParser returns nil when story import is disabled or has no API key.
func (c *Container) openParser() storyparser.Parser {
	ic := c.Config.Importer
	if !ic.Enabled {
		return nil
	}
	if ic.APIKey == "" {
		c.Logger.Info("story import disabled, no API key configured")
		return nil
	}
	parser, err := storyparser.NewGeminiParser(storyparser.Config{
		BaseURL: ic.BaseURL,
		APIKey:  ic.APIKey,
		Model:   ic.Model,
		Timeout: ic.Timeout,
	}, c.Logger)
	if err != nil {
		c.Logger.Warn("story import unavailable", logging.Err(err))
		return nil
	}
	return parser
}

func (c *Container) openPublisher(source string) (*kafka.EventPublisher, error) {
	kc := c.Config.Kafka
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		ClientID:     kc.ClientID,
		RequiredAcks: kc.RequiredAcks,
		MaxAttempts:  kc.MaxAttempts,
		BatchTimeout: kc.BatchTimeout,
	}, c.Logger)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = "kinkeep"
	}
	publisher := kafka.NewEventPublisher(producer, kc.Topic, source)
	c.closers = append(c.closers, publisher.Close)
	return publisher, nil
}

// Postgres returns the database connection when the postgres backend is in use.
func (c *Container) Postgres() *postgres.Connection {
	return c.postgres
}

// Close releases every resource, newest first, and returns the first error.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	_ = c.Logger.Sync()
	return first
}

// PostgresConfig maps the database section to connection settings.
func PostgresConfig(db config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.DBName,
		Username:        db.User,
		Password:        db.Password,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	}
}

func minioConfig(mc config.MinIOConfig) miniostore.Config {
	return miniostore.Config{
		Endpoint:     mc.Endpoint,
		AccessKey:    mc.AccessKey,
		SecretKey:    mc.SecretKey,
		UseSSL:       mc.UseSSL,
		Region:       mc.Region,
		Bucket:       mc.Bucket,
		ObjectPrefix: strings.TrimSuffix(mc.ObjectPrefix, "/"),
	}
}
