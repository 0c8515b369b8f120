package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"adstudio-server/internal/messaging"
	"adstudio-server/internal/models"
)

// JobUpdateNotifier fans a job update out to the session's websocket and to
// the RabbitMQ job updates queue. Both paths are best effort; delivery
// failures never affect the polling loop.
type JobUpdateNotifier struct {
	manager   *Manager
	publisher messaging.JobEventPublisher
	logger    *zap.Logger
}

// NewJobUpdateNotifier creates a notifier. The publisher may be nil, leaving
// only the websocket path.
func NewJobUpdateNotifier(manager *Manager, publisher messaging.JobEventPublisher, logger *zap.Logger) *JobUpdateNotifier {
	return &JobUpdateNotifier{
		manager:   manager,
		publisher: publisher,
		logger:    logger.Named("JobUpdateNotifier"),
	}
}

// NotifyJobUpdate delivers one job update.
func (n *JobUpdateNotifier) NotifyJobUpdate(sessionID string, job *models.GenerationJob) {
	event := messaging.JobUpdateEvent{
		SessionID: sessionID,
		Job:       job,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal job update", zap.Error(err))
		return
	}
	n.manager.SendToSession(sessionID, payload)

	if n.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.publisher.PublishJobUpdate(ctx, event); err != nil {
			n.logger.Warn("Failed to publish job update event",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}
