package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"testing"
	"time"
)

// apiEnvelope is the JSON wrapper every API response uses.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.baseURL+path, reader)
	if err != nil {
		t.Fatalf("create %s request: %v", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-E2E-Test", "true")

	resp, err := env.httpClient.Do(req)
	if err != nil {
		t.Fatalf("execute %s request: %v", method, err)
	}
	t.Logf("%s %s -> %d", method, path, resp.StatusCode)
	return resp
}

func doGet(t *testing.T, path string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodGet, path, nil)
}

func doPost(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodPost, path, body)
}

func doDelete(t *testing.T, path string) *http.Response {
	t.Helper()
	return doRequest(t, http.MethodDelete, path, nil)
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, body)
	}
}

// decodeEnvelope reads the envelope and unmarshals its data into target.
func decodeEnvelope(t *testing.T, resp *http.Response, target interface{}) *apiEnvelope {
	t.Helper()
	defer resp.Body.Close()

	var out apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if target != nil && len(out.Data) > 0 {
		if err := json.Unmarshal(out.Data, target); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return &out
}

func randomSuffix() string {
	return fmt.Sprintf("%d%04d", time.Now().UnixNano()%1e6, rand.Intn(10000))
}

// createAndCleanup runs createFn and deletes the returned member id when the
// whole suite ends.
func createAndCleanup(t *testing.T, createFn func() string) string {
	t.Helper()
	id := createFn()
	registerCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = env.sdkClient.Members().Delete(ctx, id)
	})
	return id
}
