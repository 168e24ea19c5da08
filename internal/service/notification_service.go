package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/jobs"
)

const notificationJobType = "grievance_event"

type eventPublisher interface {
	Publish(ctx context.Context, event models.GrievanceEvent) (int64, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type notificationMetrics interface {
	RecordNotification(outcome string)
}

// NotificationService hands lifecycle events to a background queue which
// publishes them for downstream notifiers. Callers never wait on delivery.
type NotificationService struct {
	publisher eventPublisher
	queue     jobEnqueuer
	metrics   notificationMetrics
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Use Attach to bind the queue
// created with Handle as its handler.
func NewNotificationService(publisher eventPublisher, metrics notificationMetrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{publisher: publisher, metrics: metrics, logger: logger}
}

// Attach sets the queue events are enqueued on.
func (s *NotificationService) Attach(queue jobEnqueuer) {
	s.queue = queue
}

// Notify enqueues the event. Failures are logged and swallowed.
func (s *NotificationService) Notify(ctx context.Context, event models.GrievanceEvent) {
	if s == nil {
		return
	}
	if s.queue == nil {
		s.deliver(ctx, event)
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.record("dropped")
		s.logger.Warn("failed to enqueue grievance event",
			zap.String("type", string(event.Type)),
			zap.String("grievance_id", event.GrievanceID),
			zap.Error(err))
	}
}

// Handle is the queue handler publishing one event. Returning an error makes
// the queue retry.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.GrievanceEvent)
	if !ok {
		s.logger.Error("dropping malformed notification job", zap.String("job_id", job.ID))
		return nil
	}
	if s.publisher == nil {
		return nil
	}
	if _, err := s.publisher.Publish(ctx, event); err != nil {
		s.record("failed")
		return fmt.Errorf("publish %s for %s: %w", event.Type, event.GrievanceID, err)
	}
	s.record("published")
	return nil
}

func (s *NotificationService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordNotification(outcome)
	}
}

func (s *NotificationService) deliver(ctx context.Context, event models.GrievanceEvent) {
	if err := s.Handle(ctx, jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: event}); err != nil {
		s.logger.Warn("failed to publish grievance event", zap.Error(err))
	}
}
