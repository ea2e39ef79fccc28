package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/nextrun/internal/model"
	"github.com/t77yq/nextrun/internal/service"
	"github.com/t77yq/nextrun/internal/storage"
)

const operationTimeout = 30 * time.Second

// TriggerScheduler fires registered schedules through cron and publishes a
// trigger event for each run
type TriggerScheduler struct {
	logger    *zap.Logger
	js        nats.JetStreamContext
	store     storage.ScheduleStore
	publisher *service.TriggerService
	cron      *cron.Cron
	now       func() time.Time

	mu       sync.Mutex
	jobs     map[string]*model.ScheduledJob
	entryIDs map[string]cron.EntryID
	subs     []*nats.Subscription
}

// Option configures a TriggerScheduler
type Option func(*TriggerScheduler)

// WithClock overrides the clock used to compute markers when registering and
// firing schedules
func WithClock(now func() time.Time) Option {
	return func(s *TriggerScheduler) {
		s.now = now
	}
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewTriggerScheduler creates a new trigger scheduler
func NewTriggerScheduler(js nats.JetStreamContext, store storage.ScheduleStore, publisher *service.TriggerService, logger *zap.Logger, opts ...Option) *TriggerScheduler {
	cl := &cronLogger{logger: logger.Named("cron")}

	s := &TriggerScheduler{
		logger:    logger.Named("scheduler"),
		js:        js,
		store:     store,
		publisher: publisher,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		now:      time.Now,
		jobs:     make(map[string]*model.ScheduledJob),
		entryIDs: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start restores stored schedules, starts cron and listens for schedule commands
func (s *TriggerScheduler) Start(ctx context.Context) error {
	if err := s.setupStream(ctx); err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	jobs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	for _, job := range jobs {
		if job.Status == model.ScheduleStatusDisabled {
			s.logger.Info("Skipping disabled schedule",
				zap.String("id", job.ID),
				zap.String("name", job.Name))
			continue
		}
		if err := s.AddSchedule(ctx, job); err != nil {
			s.logger.Warn("Skipping stored schedule",
				zap.String("id", job.ID),
				zap.String("name", job.Name),
				zap.Error(err))
			if errors.Is(err, ErrInvalidSchedule) {
				s.markInvalid(ctx, job)
			}
		}
	}
	s.logger.Info("Restored schedules", zap.Int("count", len(s.ListSchedules())))

	s.cron.Start()
	return s.subscribeToCommands(ctx)
}

// Stop stops cron and waits for running jobs
func (s *TriggerScheduler) Stop() {
	s.mu.Lock()
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *TriggerScheduler) setupStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err := s.js.StreamInfo(scheduleStreamName, nats.Context(ctx))
	if err == nil {
		s.logger.Info("Using existing schedule stream", zap.String("name", scheduleStreamName))
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:     scheduleStreamName,
		Subjects: []string{scheduleSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	}, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	s.logger.Info("Created schedule stream", zap.String("name", scheduleStreamName))
	return nil
}

// AddSchedule validates, persists and registers job. A job with an existing
// ID replaces the previous registration.
func (s *TriggerScheduler) AddSchedule(ctx context.Context, job *model.ScheduledJob) error {
	sched := job.Schedule()
	if !IsValidSchedule(sched) {
		return fmt.Errorf("%w: %s %q", ErrInvalidSchedule, job.Spec.Type, job.Name)
	}

	now := s.now().UTC()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.Status = model.ScheduleStatusActive
	job.UpdatedAt = now
	job.NextRunMarker = GetNextUTC(now, sched)

	if err := s.store.Save(ctx, job); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entryIDs[job.ID]; ok {
		s.cron.Remove(old)
	}
	s.entryIDs[job.ID] = s.cron.Schedule(CronSchedule(sched), &triggerJob{
		scheduler:  s,
		scheduleID: job.ID,
	})
	stored := *job
	s.jobs[job.ID] = &stored

	s.logger.Info("Added schedule",
		zap.String("id", job.ID),
		zap.String("name", job.Name),
		zap.String("type", string(job.Spec.Type)),
		zap.String("next_run", job.NextRunMarker))

	return nil
}

func (s *TriggerScheduler) markInvalid(ctx context.Context, job *model.ScheduledJob) {
	job.Status = model.ScheduleStatusInvalid
	job.NextRunMarker = Sentinel
	job.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, job); err != nil {
		s.logger.Error("Failed to mark schedule invalid",
			zap.String("id", job.ID),
			zap.Error(err))
	}
}

// RemoveSchedule unregisters and deletes a schedule
func (s *TriggerScheduler) RemoveSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	entryID, ok := s.entryIDs[id]
	if ok {
		s.cron.Remove(entryID)
		delete(s.entryIDs, id)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok && !deleted {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}

	s.logger.Info("Removed schedule", zap.String("id", id))
	return nil
}

// GetSchedule returns a copy of a registered schedule
func (s *TriggerScheduler) GetSchedule(id string) (*model.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	cp := *job
	return &cp, nil
}

// ListSchedules returns copies of all registered schedules ordered by next run
func (s *TriggerScheduler) ListSchedules() []*model.ScheduledJob {
	s.mu.Lock()
	jobs := make([]*model.ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	SortByNextRun(jobs)
	return jobs
}

// Fire runs the schedule with the given ID once, as cron would
func (s *TriggerScheduler) Fire(ctx context.Context, id string) (*model.TriggerEvent, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var cp model.ScheduledJob
	if ok {
		cp = *job
	}
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}

	now := s.now().UTC()
	event := &model.TriggerEvent{
		ID:         uuid.New().String(),
		ScheduleID: cp.ID,
		Name:       cp.Name,
		Marker:     FormatMarker(now),
		NextMarker: GetNextUTC(now, cp.Schedule()),
		Payload:    cp.Payload,
		FiredAt:    now,
	}

	record := &model.TriggerRecord{
		ID:         event.ID,
		ScheduleID: event.ScheduleID,
		Name:       event.Name,
		Marker:     event.Marker,
		Status:     model.TriggerStatusPublished,
		FiredAt:    now,
	}
	publishErr := s.publisher.Publish(ctx, event)
	if publishErr != nil {
		record.Status = model.TriggerStatusFailed
		record.Error = publishErr.Error()
	}
	if err := s.store.RecordTrigger(ctx, record); err != nil {
		s.logger.Error("Failed to record trigger",
			zap.String("id", cp.ID),
			zap.Error(err))
	}

	cp.LastRunTime = &now
	cp.NextRunMarker = event.NextMarker
	cp.UpdatedAt = now
	// A schedule removed while firing must not be written back.
	s.mu.Lock()
	if _, still := s.jobs[id]; still {
		if err := s.store.Save(ctx, &cp); err != nil {
			s.logger.Error("Failed to update schedule",
				zap.String("id", cp.ID),
				zap.Error(err))
		}
		s.jobs[id] = &cp
	}
	s.mu.Unlock()

	if publishErr != nil {
		return event, publishErr
	}

	s.logger.Info("Executed schedule",
		zap.String("id", cp.ID),
		zap.String("name", cp.Name),
		zap.String("marker", event.Marker),
		zap.String("next_run", event.NextMarker))
	return event, nil
}

// subscribeToCommands subscribes to schedule management commands
func (s *TriggerScheduler) subscribeToCommands(ctx context.Context) error {
	addSub, err := s.js.Subscribe(scheduleAddSubject, func(msg *nats.Msg) {
		var job model.ScheduledJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.Error("Failed to unmarshal schedule", zap.Error(err))
			msg.Term()
			return
		}

		if err := s.AddSchedule(ctx, &job); err != nil {
			s.logger.Error("Failed to add schedule", zap.Error(err))
		}
		msg.Ack()
	}, nats.Durable(scheduleAddConsumer), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", scheduleAddSubject, err)
	}

	removeSub, err := s.js.Subscribe(scheduleRemoveSubject, func(msg *nats.Msg) {
		var id string
		if err := json.Unmarshal(msg.Data, &id); err != nil {
			s.logger.Error("Failed to unmarshal schedule ID", zap.Error(err))
			msg.Term()
			return
		}

		if err := s.RemoveSchedule(ctx, id); err != nil {
			s.logger.Error("Failed to remove schedule", zap.Error(err))
		}
		msg.Ack()
	}, nats.Durable(scheduleRemoveConsumer), nats.ManualAck())
	if err != nil {
		addSub.Unsubscribe()
		return fmt.Errorf("failed to subscribe to %s: %w", scheduleRemoveSubject, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, addSub, removeSub)
	s.mu.Unlock()
	return nil
}

// triggerJob implements cron.Job
type triggerJob struct {
	scheduler  *TriggerScheduler
	scheduleID string
}

// Run implements cron.Job
func (j *triggerJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if _, err := j.scheduler.Fire(ctx, j.scheduleID); err != nil {
		j.scheduler.logger.Error("Failed to fire schedule",
			zap.String("id", j.scheduleID),
			zap.Error(err))
	}
}
