package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/nextrun/internal/model"
)

const (
	// TriggerSubjectPrefix prefixes the per-schedule trigger subject
	TriggerSubjectPrefix = "schedule.trigger."

	defaultMaxAttempts = 3
)

// TriggerSubject returns the subject trigger events of a schedule are published on
func TriggerSubject(scheduleID string) string {
	return TriggerSubjectPrefix + scheduleID
}

// TriggerService publishes and consumes trigger events over JetStream
type TriggerService struct {
	js          nats.JetStreamContext
	logger      *zap.Logger
	strategy    RetryStrategy
	maxAttempts int
}

// NewTriggerService creates a trigger service. A nil strategy falls back to DefaultBackoff.
func NewTriggerService(js nats.JetStreamContext, strategy RetryStrategy, maxAttempts int, logger *zap.Logger) *TriggerService {
	if strategy == nil {
		strategy = DefaultBackoff
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &TriggerService{
		js:          js,
		logger:      logger.Named("trigger"),
		strategy:    strategy,
		maxAttempts: maxAttempts,
	}
}

// Publish sends event on its schedule's trigger subject, retrying failed publishes
func (s *TriggerService) Publish(ctx context.Context, event *model.TriggerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger event: %w", err)
	}

	subject := TriggerSubject(event.ScheduleID)
	for attempt := 0; ; attempt++ {
		_, err = s.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(event.ID))
		if err == nil {
			s.logger.Debug("Trigger published",
				zap.String("schedule_id", event.ScheduleID),
				zap.String("marker", event.Marker))
			return nil
		}
		if attempt+1 >= s.maxAttempts {
			break
		}

		delay := s.strategy.NextRetry(attempt)
		s.logger.Warn("Failed to publish trigger, retrying",
			zap.String("schedule_id", event.ScheduleID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	s.logger.Error("Failed to publish trigger",
		zap.String("schedule_id", event.ScheduleID),
		zap.Int("attempts", s.maxAttempts),
		zap.Error(err))
	return fmt.Errorf("failed to publish trigger after %d attempts: %w", s.maxAttempts, err)
}

// Subscribe delivers trigger events to handler until ctx is done. An empty
// scheduleID subscribes to every schedule.
func (s *TriggerService) Subscribe(ctx context.Context, scheduleID string, handler func(*model.TriggerEvent)) error {
	subject := TriggerSubjectPrefix + "*"
	if scheduleID != "" {
		subject = TriggerSubject(scheduleID)
	}

	sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
		var event model.TriggerEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Error("Failed to unmarshal trigger event",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			msg.Term()
			return
		}

		handler(&event)
		msg.Ack()
	}, nats.DeliverNew(), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}
