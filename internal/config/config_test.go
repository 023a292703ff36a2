package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultStorageKey, cfg.Storage.Key)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, DefaultImporterModel, cfg.Importer.Model)
	assert.Equal(t, DefaultImporterTimeout, cfg.Importer.Timeout)
	assert.Equal(t, DefaultImporterBurst, cfg.Importer.Burst)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 9999},
		Storage:  StorageConfig{Backend: BackendRedis, Key: "custom"},
		Importer: ImporterConfig{Timeout: 5 * time.Second},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "custom", cfg.Storage.Key)
	assert.Equal(t, 5*time.Second, cfg.Importer.Timeout)
}

func TestApplyDefaults_NilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"key", func(c *Config) { c.Storage.Key = "  " }, "storage.key"},
		{"data dir", func(c *Config) {
			c.Storage.Backend = BackendSQLite
			c.Storage.DataDir = ""
		}, "storage.data_dir"},
		{"redis addr", func(c *Config) {
			c.Storage.Backend = BackendRedis
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"redis sentinel", func(c *Config) {
			c.Storage.Backend = BackendRedis
			c.Redis.Mode = "sentinel"
		}, "redis.master_name"},
		{"redis mode", func(c *Config) {
			c.Storage.Backend = BackendRedis
			c.Redis.Mode = "ring"
		}, "redis.mode"},
		{"postgres user", func(c *Config) { c.Storage.Backend = BackendPostgres }, "database.user"},
		{"minio bucket", func(c *Config) {
			c.Storage.Backend = BackendMinIO
			c.MinIO.Bucket = ""
		}, "minio.bucket"},
		{"exports bucket", func(c *Config) {
			c.MinIO.Exports = true
			c.MinIO.Bucket = ""
		}, "minio.exports"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true }, "kafka.brokers"},
		{"importer timeout", func(c *Config) { c.Importer.Timeout = -time.Second }, "importer.timeout"},
		{"import rate", func(c *Config) { c.Importer.RatePerMinute = -1 }, "importer.rate_per_minute"},
		{"worker quiet period", func(c *Config) { c.Worker.QuietPeriod = -time.Second }, "worker.quiet_period"},
		{"worker format", func(c *Config) { c.Worker.SnapshotFormat = "csv" }, "worker.snapshot_format"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.substr)
		})
	}
}

func TestValidate_PostgresComplete(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = BackendPostgres
	cfg.Database.User = "kinkeep"
	assert.NoError(t, cfg.Validate())
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{Host: "127.0.0.1", Port: 8080}.Addr())
}
