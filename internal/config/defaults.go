package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 90 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxBodySize     = 16 << 20

	// DefaultStorageKey is the fixed key under which the family document lives.
	DefaultStorageKey      = "kinkeep_family_data"
	DefaultStorageBackend  = BackendFile
	DefaultStorageDataDir  = "./data"

	DefaultRedisMode = "standalone"
	DefaultRedisAddr = "localhost:6379"

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBName         = "kinkeep"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 10
	DefaultDBMaxIdleConns = 5

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "kinkeep"

	DefaultKafkaTopic    = "kinkeep.member.events"
	DefaultKafkaClientID = "kinkeep"

	DefaultImporterBaseURL = "https://generativelanguage.googleapis.com"
	DefaultImporterModel   = "gemini-3-flash-preview"
	DefaultImporterTimeout = 60 * time.Second
	DefaultImporterRate    = 6.0
	DefaultImporterBurst   = 2

	DefaultWorkerGroupID     = "kinkeep-snapshots"
	DefaultWorkerHealthPort  = 8081
	DefaultWorkerFormat      = "json"
	DefaultWorkerQuietPeriod = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "kinkeep"
)

// ApplyDefaults fills zero-value fields in cfg. Explicit values always win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = DefaultStorageKey
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultStorageDataDir
	}

	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" && len(cfg.Redis.Addrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}

	if cfg.Importer.BaseURL == "" {
		cfg.Importer.BaseURL = DefaultImporterBaseURL
	}
	if cfg.Importer.Model == "" {
		cfg.Importer.Model = DefaultImporterModel
	}
	if cfg.Importer.Timeout == 0 {
		cfg.Importer.Timeout = DefaultImporterTimeout
	}
	if cfg.Importer.Burst == 0 {
		cfg.Importer.Burst = DefaultImporterBurst
	}

	if cfg.Worker.GroupID == "" {
		cfg.Worker.GroupID = DefaultWorkerGroupID
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = DefaultWorkerHealthPort
	}
	if cfg.Worker.SnapshotFormat == "" {
		cfg.Worker.SnapshotFormat = DefaultWorkerFormat
	}
	if cfg.Worker.QuietPeriod == 0 {
		cfg.Worker.QuietPeriod = DefaultWorkerQuietPeriod
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// registerKeys makes every key known to viper so that AutomaticEnv overrides
// apply during Unmarshal even when the key is absent from the config file.
func registerKeys(v *viper.Viper) {
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.max_body_size", DefaultServerMaxBodySize)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("storage.backend", DefaultStorageBackend)
	v.SetDefault("storage.key", DefaultStorageKey)
	v.SetDefault("storage.data_dir", DefaultStorageDataDir)

	v.SetDefault("redis.mode", DefaultRedisMode)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "")

	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.ssl_mode", DefaultDBSSLMode)
	v.SetDefault("database.migration_path", "")

	v.SetDefault("minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", DefaultMinIOBucket)
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.object_prefix", "")
	v.SetDefault("minio.exports", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.client_id", DefaultKafkaClientID)
	v.SetDefault("kafka.required_acks", "one")

	v.SetDefault("importer.enabled", true)
	v.SetDefault("importer.base_url", DefaultImporterBaseURL)
	v.SetDefault("importer.model", DefaultImporterModel)
	v.SetDefault("importer.timeout", DefaultImporterTimeout)
	v.SetDefault("importer.rate_per_minute", DefaultImporterRate)
	v.SetDefault("importer.burst", DefaultImporterBurst)
	_ = v.BindEnv("importer.api_key", envPrefix+"_IMPORTER_API_KEY", "GEMINI_API_KEY", "API_KEY")

	v.SetDefault("worker.group_id", DefaultWorkerGroupID)
	v.SetDefault("worker.health_port", DefaultWorkerHealthPort)
	v.SetDefault("worker.snapshot_format", DefaultWorkerFormat)
	v.SetDefault("worker.quiet_period", DefaultWorkerQuietPeriod)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", DefaultMetricsPath)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
}
