package uploads

import (
	"context"
	"time"

	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"github.com/sirupsen/logrus"
)

// SessionPublisher dispatches session messages; *kafka.Producer satisfies it.
type SessionPublisher interface {
	PublishSession(ctx context.Context, msg models.UploadSessionMessage) error
}

// EventPublisher emits platform events; *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Terminal session outcomes announced on the events topic.
const (
	EventSessionCompleted = "upload-session-completed"
	EventSessionFailed    = "upload-session-failed"
)

// Worker wraps the session processor with whole-session retry semantics:
// a failed attempt is re-published with a bumped attempt count after a fixed
// delay, up to maxRetries retries. Exhausted sessions are recorded on the
// dead-letter topic and receive no further automatic action. There is no
// per-file retry.
type Worker struct {
	processor  *Processor
	producer   SessionPublisher
	dlq        SessionPublisher
	events     EventPublisher
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewWorker(processor *Processor, producer, dlq SessionPublisher, events EventPublisher, maxRetries int, retryDelay time.Duration) *Worker {
	return &Worker{
		processor:  processor,
		producer:   producer,
		dlq:        dlq,
		events:     events,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func (w *Worker) Handle(ctx context.Context, msg models.UploadSessionMessage) error {
	err := w.processor.Run(ctx, msg)
	if err == nil {
		w.announce(ctx, EventSessionCompleted, msg)
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{
		"session_id": msg.SessionID,
		"attempt":    msg.Attempt,
	})

	if msg.Attempt >= w.maxRetries {
		log.WithError(err).Error("upload session exhausted its retry budget")
		if w.dlq != nil {
			retired := msg
			if dlqErr := w.dlq.PublishSession(ctx, retired); dlqErr != nil {
				log.WithError(dlqErr).Error("failed to record session on DLQ")
			}
		}
		w.announce(ctx, EventSessionFailed, msg)
		return err
	}

	if sleepErr := w.sleep(ctx, w.retryDelay); sleepErr != nil {
		return sleepErr
	}

	retry := msg
	retry.Attempt = msg.Attempt + 1
	if pubErr := w.producer.PublishSession(ctx, retry); pubErr != nil {
		log.WithError(pubErr).Error("failed to re-publish session for retry")
		return pubErr
	}

	log.WithError(err).Warn("upload session re-scheduled")
	return err
}

// announce publishes a terminal session outcome. Event delivery is best
// effort and never alters the session's own result.
func (w *Worker) announce(ctx context.Context, eventType string, msg models.UploadSessionMessage) {
	if w.events == nil {
		return
	}
	data := map[string]interface{}{
		"session_id": msg.SessionID,
		"patient_id": msg.PatientID,
		"attempt":    msg.Attempt,
		"files":      len(msg.Uploads),
	}
	if err := w.events.PublishEvent(ctx, eventType, "upload-worker", data); err != nil {
		logger.Log.WithError(err).WithField("session_id", msg.SessionID).
			Warn("failed to publish session event")
	}
}
