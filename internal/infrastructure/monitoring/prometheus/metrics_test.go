package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/KinKeep/pkg/errors"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "kinkeep"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))
}

func TestCollector_RegisterTwiceReturnsSame(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("things_total", "things", "kind")
	second := c.RegisterCounter("things_total", "things", "kind")

	first.WithLabelValues("a").Inc()
	second.WithLabelValues("a").Inc()

	assert.Contains(t, scrape(t, c), `kinkeep_things_total{kind="a"} 2`)
}

func TestCollector_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("clash", "counter")
	g := c.RegisterGauge("clash", "gauge")

	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(3) })
}

func TestAppMetrics_Record(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RecordHTTPRequest("GET", "/api/v1/members", 200, 20*time.Millisecond)
	m.RecordMemberOperation("create", nil)
	m.RecordMemberOperation("delete", errors.New("boom"))
	m.SetMemberCount(7)
	m.RecordStoryImport(2*time.Second, 3, nil)
	m.RecordEventPublished("member.created", nil)
	m.RecordStorageOperation("load", time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, `kinkeep_http_requests_total{method="GET",path="/api/v1/members",status_code="200"} 1`)
	assert.Contains(t, out, `kinkeep_member_operations_total{operation="create",result="success"} 1`)
	assert.Contains(t, out, `kinkeep_member_operations_total{operation="delete",result="failure"} 1`)
	assert.Contains(t, out, `kinkeep_members_total 7`)
	assert.Contains(t, out, `kinkeep_story_imports_total{result="success"} 1`)
	assert.Contains(t, out, `kinkeep_imported_members_total 3`)
	assert.Contains(t, out, `kinkeep_events_published_total{event_type="member.created",result="success"} 1`)
}

func TestAppMetrics_NilIsSafe(t *testing.T) {
	var m *AppMetrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
		m.RecordMemberOperation("create", nil)
		m.SetMemberCount(1)
		m.RecordStoryImport(time.Second, 1, nil)
		m.RecordStorageOperation("save", time.Second)
		m.RecordEventPublished("member.deleted", nil)
	})
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_seconds", "op", nil, "op")
	timer := NewTimer(h.WithLabelValues("x"))
	assert.GreaterOrEqual(t, timer.ObserveDuration(), time.Duration(0))
	assert.Contains(t, scrape(t, c), `kinkeep_op_seconds_count{op="x"} 1`)
}
