// Package integration runs the KinKeep API end to end against each storage
// backend. Embedded backends (file, memory, sqlite, redis via miniredis) run
// on every test invocation; external ones need KINKEEP_INTEGRATION_TEST=1
// and their address variables.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/turtacn/KinKeep/internal/bootstrap"
	"github.com/turtacn/KinKeep/internal/config"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/KinKeep/internal/interfaces/http"
	"github.com/turtacn/KinKeep/internal/interfaces/http/handlers"
	"github.com/turtacn/KinKeep/internal/interfaces/http/middleware"
	"github.com/turtacn/KinKeep/pkg/client"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

const (
	// EnvIntegrationEnabled enables the suites that need external services.
	EnvIntegrationEnabled = "KINKEEP_INTEGRATION_TEST"

	// EnvRedisAddr points the redis suite at a real server instead of miniredis.
	EnvRedisAddr = "KINKEEP_TEST_REDIS_ADDR"

	// EnvPostgresHost, EnvPostgresPort, EnvPostgresUser, EnvPostgresPassword
	// and EnvPostgresDB select the PostgreSQL database.
	EnvPostgresHost     = "KINKEEP_TEST_POSTGRES_HOST"
	EnvPostgresPort     = "KINKEEP_TEST_POSTGRES_PORT"
	EnvPostgresUser     = "KINKEEP_TEST_POSTGRES_USER"
	EnvPostgresPassword = "KINKEEP_TEST_POSTGRES_PASSWORD"
	EnvPostgresDB       = "KINKEEP_TEST_POSTGRES_DB"

	// EnvMinIOEndpoint, EnvMinIOAccessKey and EnvMinIOSecretKey select MinIO.
	EnvMinIOEndpoint  = "KINKEEP_TEST_MINIO_ENDPOINT"
	EnvMinIOAccessKey = "KINKEEP_TEST_MINIO_ACCESS_KEY"
	EnvMinIOSecretKey = "KINKEEP_TEST_MINIO_SECRET_KEY"

	// TestTimeout bounds a single scenario.
	TestTimeout = 60 * time.Second

	// SetupTimeout bounds container construction.
	SetupTimeout = 30 * time.Second
)

// Backends lists every storage backend the suite knows how to start.
var Backends = []string{
	config.BackendMemory,
	config.BackendFile,
	config.BackendSQLite,
	config.BackendRedis,
	config.BackendPostgres,
	config.BackendMinIO,
}

// SkipIfNoIntegration skips the calling test when the integration flag is unset.
func SkipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationEnabled) == "" {
		t.Skipf("skipping integration test: set %s=1 to enable", EnvIntegrationEnabled)
	}
}

// TestEnvironment is one running API over one backend.
type TestEnvironment struct {
	Ctx       context.Context
	Backend   string
	Cfg       *config.Config
	Container *bootstrap.Container
	Server    *httptest.Server
	Client    *client.Client
}

// BackendConfig returns a configuration for backend, or skips the test when
// the backend's service is not available. Embedded backends keep their state
// in dir so a second environment over the same config sees the same record.
func BackendConfig(t *testing.T, backend, dir string) *config.Config {
	t.Helper()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Storage.Backend = backend
	cfg.Storage.DataDir = dir
	cfg.Storage.Key = "kinkeep_it_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	cfg.Kafka.Enabled = false
	cfg.Importer.Enabled = false
	cfg.Importer.RatePerMinute = 0
	cfg.Metrics.Enabled = false

	switch backend {
	case config.BackendRedis:
		if addr := os.Getenv(EnvRedisAddr); addr != "" {
			SkipIfNoIntegration(t)
			cfg.Redis.Addr = addr
		} else {
			mr := miniredis.RunT(t)
			cfg.Redis.Addr = mr.Addr()
		}
	case config.BackendPostgres:
		SkipIfNoIntegration(t)
		RequireEnv(t, EnvPostgresHost)
		cfg.Database.Host = os.Getenv(EnvPostgresHost)
		if port, err := strconv.Atoi(os.Getenv(EnvPostgresPort)); err == nil {
			cfg.Database.Port = port
		}
		cfg.Database.User = envOr(EnvPostgresUser, "kinkeep")
		cfg.Database.Password = os.Getenv(EnvPostgresPassword)
		cfg.Database.DBName = envOr(EnvPostgresDB, "kinkeep_test")
	case config.BackendMinIO:
		SkipIfNoIntegration(t)
		RequireEnv(t, EnvMinIOEndpoint)
		cfg.MinIO.Endpoint = os.Getenv(EnvMinIOEndpoint)
		cfg.MinIO.AccessKey = os.Getenv(EnvMinIOAccessKey)
		cfg.MinIO.SecretKey = os.Getenv(EnvMinIOSecretKey)
		cfg.MinIO.ObjectPrefix = "it-" + cfg.Storage.Key + "/"
	}
	return cfg
}

// Start builds a container and an API server over cfg. Both are closed when
// the test ends.
func Start(t *testing.T, cfg *config.Config) *TestEnvironment {
	t.Helper()

	setupCtx, cancel := context.WithTimeout(context.Background(), SetupTimeout)
	defer cancel()
	c, err := bootstrap.New(setupCtx, cfg, logging.NewNopLogger(), bootstrap.Options{Source: "integration"})
	if err != nil {
		t.Fatalf("start %s backend: %v", cfg.Storage.Backend, err)
	}

	server := httptest.NewServer(NewRouter(c))
	cl, err := client.NewClient(server.URL, client.WithRetryMax(0), client.WithTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	ctx, cancelTest := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(func() {
		cancelTest()
		server.Close()
		_ = c.Close()
	})

	return &TestEnvironment{
		Ctx:       ctx,
		Backend:   cfg.Storage.Backend,
		Cfg:       cfg,
		Container: c,
		Server:    server,
		Client:    cl,
	}
}

// NewRouter serves the container the way the API server does, minus metrics.
func NewRouter(c *bootstrap.Container) http.Handler {
	checkers := make([]handlers.HealthChecker, 0, len(c.Checks))
	for _, check := range c.Checks {
		checkers = append(checkers, handlers.CheckFunc{Label: check.Name, Fn: check.Fn})
	}
	return httpserver.NewRouter(httpserver.RouterConfig{
		MemberHandler: handlers.NewMemberHandler(c.Service),
		StoryHandler:  handlers.NewStoryHandler(c.Service),
		HealthHandler: handlers.NewHealthHandler("integration", checkers...),
		CORS:          middleware.DefaultCORSConfig(),
		Logging:       middleware.DefaultLoggingConfig(),
		MaxBodySize:   c.Config.Server.MaxBodySize,
		Logger:        c.Logger,
	})
}

// RequireEnv skips the test when name is unset.
func RequireEnv(t *testing.T, name string) {
	t.Helper()
	if os.Getenv(name) == "" {
		t.Skipf("skipping: %s not set", name)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// Family is the seeded three-generation record used by the scenarios.
type Family struct {
	Grandpa, Grandma, Father, Mother, Child *client.Member
}

// SeedFamily creates a small family through the API. Members are created
// oldest first so the grid (newest first) lists the child at the top.
func SeedFamily(t *testing.T, env *TestEnvironment) *Family {
	t.Helper()
	mk := func(in client.MemberInput) *client.Member {
		t.Helper()
		m, err := env.Client.Members().Create(env.Ctx, &in)
		AssertNoError(t, err)
		time.Sleep(2 * time.Millisecond)
		return m
	}

	f := &Family{}
	f.Grandpa = mk(client.MemberInput{FirstName: "Walter", LastName: "Hale", Gender: "male", BirthDate: "1921-03-04", DeathDate: "1999-11-30"})
	f.Grandma = mk(client.MemberInput{FirstName: "Edith", LastName: "Hale", MaidenName: "Brook", Gender: "female", BirthDate: "1924-07-19",
		SpouseID: f.Grandpa.ID, MarriageDate: "1946-06-01"})
	f.Father = mk(client.MemberInput{FirstName: "Thomas", LastName: "Hale", Gender: "male", BirthDate: "1950-01-15",
		FatherID: f.Grandpa.ID, FatherType: "biological", MotherID: f.Grandma.ID, MotherType: "biological"})
	f.Mother = mk(client.MemberInput{FirstName: "Rosa", LastName: "Hale", MaidenName: "Quint", Gender: "female",
		SpouseID: f.Father.ID})
	f.Child = mk(client.MemberInput{FirstName: "June", LastName: "Hale", Gender: "female", BirthDate: "1980-05-05",
		FatherID: f.Father.ID, MotherID: f.Mother.ID, MotherType: "adoptive"})
	return f
}

// AssertNoError fails the test if err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertAPIErrorCode checks that err is an API error with the given code.
func AssertAPIErrorCode(t *testing.T, err error, expected pkgerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s but got nil", expected)
	}
	var apiErr *client.APIError
	if !pkgerrors.As(err, &apiErr) {
		t.Fatalf("expected *client.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != string(expected) {
		t.Fatalf("expected error code %s, got %s (message: %s)", expected, apiErr.Code, apiErr.Message)
	}
}

// AssertStringContains checks that s contains substr.
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected string to contain %q, got: %s", substr, s)
	}
}

// Names returns the first names of members in order.
func Names(members []client.MemberSummary) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.FirstName
	}
	return out
}
