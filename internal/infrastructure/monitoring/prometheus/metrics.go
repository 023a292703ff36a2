package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all application metrics. A nil *AppMetrics is valid and
// records nothing.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	MemberOperationsTotal CounterVec
	MembersTotal          GaugeVec

	StoryImportsTotal    CounterVec
	StoryImportDuration  HistogramVec
	ImportedMembersTotal CounterVec

	StorageOperationDuration HistogramVec
	EventsPublishedTotal     CounterVec
}

var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultLLMDurationBuckets     = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultStorageDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics with collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method"),

		MemberOperationsTotal: collector.RegisterCounter("member_operations_total", "Member store operations", "operation", "result"),
		MembersTotal:          collector.RegisterGauge("members_total", "Members in the family document"),

		StoryImportsTotal:    collector.RegisterCounter("story_imports_total", "Story import attempts", "result"),
		StoryImportDuration:  collector.RegisterHistogram("story_import_duration_seconds", "Story parsing duration", DefaultLLMDurationBuckets, "result"),
		ImportedMembersTotal: collector.RegisterCounter("imported_members_total", "Members created from stories"),

		StorageOperationDuration: collector.RegisterHistogram("storage_operation_duration_seconds", "Document load and save duration", DefaultStorageDurationBuckets, "operation"),
		EventsPublishedTotal:     collector.RegisterCounter("events_published_total", "Member events published", "event_type", "result"),
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordMemberOperation(op string, err error) {
	if m == nil {
		return
	}
	m.MemberOperationsTotal.WithLabelValues(op, result(err)).Inc()
}

func (m *AppMetrics) SetMemberCount(n int) {
	if m == nil {
		return
	}
	m.MembersTotal.WithLabelValues().Set(float64(n))
}

func (m *AppMetrics) RecordStoryImport(duration time.Duration, imported int, err error) {
	if m == nil {
		return
	}
	res := result(err)
	m.StoryImportsTotal.WithLabelValues(res).Inc()
	m.StoryImportDuration.WithLabelValues(res).Observe(duration.Seconds())
	if imported > 0 {
		m.ImportedMembersTotal.WithLabelValues().Add(float64(imported))
	}
}

func (m *AppMetrics) RecordStorageOperation(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StorageOperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *AppMetrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(eventType, result(err)).Inc()
}
