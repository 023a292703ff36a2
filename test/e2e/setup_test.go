// End-to-end tests against a running KinKeep API server. Set
// KINKEEP_E2E_BASE_URL (for example http://localhost:8080) to enable them.
package e2e_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/turtacn/KinKeep/pkg/client"
)

// testEnv holds all shared resources for E2E tests.
type testEnv struct {
	baseURL      string
	httpClient   *http.Client
	sdkClient    *client.Client
	cleanupFuncs []func()
}

var env *testEnv

func TestMain(m *testing.M) {
	baseURL := os.Getenv("KINKEEP_E2E_BASE_URL")
	if baseURL == "" {
		fmt.Println("KINKEEP_E2E_BASE_URL not set; E2E tests will be skipped")
		os.Exit(m.Run())
	}

	var err error
	env, err = setupTestEnv(baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "E2E test setup failed: %v\n", err)
		os.Exit(1)
	}

	exitCode := m.Run()
	cleanup()
	os.Exit(exitCode)
}

func setupTestEnv(baseURL string) (*testEnv, error) {
	sdk, err := client.NewClient(baseURL,
		client.WithUserAgent("kinkeep-e2e"),
		client.WithHeader("X-E2E-Test", "true"),
		client.WithRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create SDK client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := waitForReady(ctx, sdk); err != nil {
		return nil, err
	}

	return &testEnv{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sdkClient:  sdk,
	}, nil
}

// requireEnv skips the test when no server is configured.
func requireEnv(t *testing.T) {
	t.Helper()
	if env == nil {
		t.Skip("KINKEEP_E2E_BASE_URL not set")
	}
}

// waitForReady polls the readiness probe until the server and its storage
// answer, or ctx expires.
func waitForReady(ctx context.Context, sdk *client.Client) error {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		err := sdk.Ready(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s never became ready: %w", sdk.BaseURL(), err)
		case <-tick.C:
		}
	}
}

func registerCleanup(fn func()) {
	env.cleanupFuncs = append(env.cleanupFuncs, fn)
}

func cleanup() {
	for i := len(env.cleanupFuncs) - 1; i >= 0; i-- {
		env.cleanupFuncs[i]()
	}
}
