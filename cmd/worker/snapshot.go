package main

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// exportPublisher is the slice of family.Service the snapshotter needs.
type exportPublisher interface {
	PublishExport(ctx context.Context, format family.ExportFormat) (*family.PublishedExport, error)
}

type workerMetrics struct {
	events    prometheus.CounterVec
	snapshots prometheus.CounterVec
}

func newWorkerMetrics(collector prometheus.MetricsCollector) *workerMetrics {
	if collector == nil {
		return nil
	}
	return &workerMetrics{
		events:    collector.RegisterCounter("worker_events_consumed_total", "Member events consumed", "event_type"),
		snapshots: collector.RegisterCounter("worker_snapshots_total", "Export snapshots published", "result"),
	}
}

func (m *workerMetrics) recordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *workerMetrics) recordSnapshot(err error) {
	if m == nil {
		return
	}
	res := "success"
	if err != nil {
		res = "failure"
	}
	m.snapshots.WithLabelValues(res).Inc()
}

// snapshotter publishes a fresh export once the member event stream has been
// quiet for a while. A burst of edits produces a single snapshot.
type snapshotter struct {
	publisher exportPublisher
	format    family.ExportFormat
	quiet     time.Duration
	metrics   *workerMetrics
	logger    logging.Logger

	trigger chan struct{}

	mu   sync.Mutex
	last *family.PublishedExport
}

func newSnapshotter(p exportPublisher, format family.ExportFormat, quiet time.Duration, m *workerMetrics, logger logging.Logger) *snapshotter {
	return &snapshotter{
		publisher: p,
		format:    format,
		quiet:     quiet,
		metrics:   m,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
}

// Handle is the consumer callback. It never blocks on the export.
func (s *snapshotter) Handle(_ context.Context, env *kafka.EventEnvelope) error {
	s.metrics.recordEvent(env.EventType)
	s.logger.Debug("member event",
		logging.String("event_id", env.EventID),
		logging.String("event_type", env.EventType),
		logging.String("source", env.Source))
	if s.publisher == nil {
		return nil
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Run waits for triggers and publishes after the quiet period. Pending work
// is dropped when ctx ends.
func (s *snapshotter) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			if timer == nil {
				timer = time.NewTimer(s.quiet)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.quiet)
			}
			timeout = timer.C
		case <-timeout:
			timeout = nil
			s.publish(ctx)
		}
	}
}

func (s *snapshotter) publish(ctx context.Context) {
	out, err := s.publisher.PublishExport(ctx, s.format)
	s.metrics.recordSnapshot(err)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeFeatureDisabled) {
			s.logger.Warn("snapshot skipped: export storage is not configured")
			return
		}
		s.logger.Error("snapshot failed", logging.Err(err))
		return
	}

	s.mu.Lock()
	s.last = out
	s.mu.Unlock()
	s.logger.Info("snapshot published",
		logging.String("filename", out.Filename),
		logging.Int("members", out.Members))
}

// Last returns the most recent published snapshot, or nil.
func (s *snapshotter) Last() *family.PublishedExport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
