package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/testutil"
	"github.com/turtacn/KinKeep/pkg/errors"
)

func testConfig(backend string) *config.Config {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: backend}}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestNew_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	log := testutil.NewMockLogger()
	c, err := New(ctx, testConfig(config.BackendMemory), log, Options{Metrics: true})
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, log.HasMessage("warn", "memory backend selected, the family record will not survive a restart"))
	assert.NotNil(t, c.Collector)
	assert.NotNil(t, c.Metrics)
	require.Len(t, c.Checks, 1)
	assert.Equal(t, "storage:memory", c.Checks[0].Name)
	assert.NoError(t, c.Checks[0].Fn(ctx))
	assert.Nil(t, c.Postgres())

	_, err = c.Service.Create(ctx, member.Draft{FirstName: "Ada", LastName: "Byron"})
	require.NoError(t, err)
	res, err := c.Service.List(ctx, &family.ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = c.Service.ImportStory(ctx, "A story")
	assert.True(t, errors.IsCode(err, errors.ErrCodeImportDisabled))

	_, err = c.Service.PublishExport(ctx, family.ExportJSON)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
}

func TestNew_FileBackendPersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendFile)
	cfg.Storage.DataDir = t.TempDir()

	first, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	created, err := first.Service.Create(ctx, member.Draft{FirstName: "Grace", LastName: "Hopper"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer second.Close()
	got, err := second.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.FirstName)
	assert.Nil(t, second.Collector)
}

func TestNew_SQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendSQLite)
	cfg.Storage.DataDir = t.TempDir()

	c, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	_, err = c.Service.Create(ctx, member.Draft{FirstName: "Alan", LastName: "Turing"})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	reopened, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer reopened.Close()
	res, err := reopened.Service.List(ctx, &family.ListInput{Term: "turing"})
	require.NoError(t, err)
	assert.Len(t, res.Members, 1)
}

func TestNew_RedisBackendSharesRecord(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(config.BackendRedis)
	cfg.Redis.Addr = mr.Addr()

	a, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer b.Close()

	created, err := a.Service.Create(ctx, member.Draft{FirstName: "Rosalind", LastName: "Franklin"})
	require.NoError(t, err)

	got, err := b.Service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Franklin", got.LastName)
	assert.True(t, mr.Exists(cfg.Storage.Key))
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(config.BackendRedis)
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := New(context.Background(), cfg, nil, Options{})
	require.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), testConfig("tape"), nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnknown))
}

func TestNew_ImporterWithKey(t *testing.T) {
	cfg := testConfig(config.BackendMemory)
	cfg.Importer.Enabled = true
	cfg.Importer.APIKey = "test-key"

	c, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Service.ImportStory(context.Background(), "   ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStoryEmpty))
}

func TestPostgresConfig(t *testing.T) {
	pc := PostgresConfig(config.DatabaseConfig{Host: "db", Port: 5433, User: "kin", DBName: "family", SSLMode: "disable"})
	assert.Equal(t, "db", pc.Host)
	assert.Equal(t, 5433, pc.Port)
	assert.Equal(t, "kin", pc.Username)
	assert.Equal(t, "family", pc.Database)
}
