package scheduler

import (
	"context"

	"github.com/t77yq/nextrun/internal/model"
)

// Scheduler defines the interface for trigger schedulers
type Scheduler interface {
	// Start starts the scheduler
	Start(ctx context.Context) error

	// Stop stops the scheduler
	Stop()

	// AddSchedule registers or replaces a scheduled job
	AddSchedule(ctx context.Context, job *model.ScheduledJob) error

	// RemoveSchedule removes a scheduled job
	RemoveSchedule(ctx context.Context, id string) error

	// GetSchedule gets a scheduled job by ID
	GetSchedule(id string) (*model.ScheduledJob, error)

	// ListSchedules lists all scheduled jobs ordered by next run
	ListSchedules() []*model.ScheduledJob
}

var _ Scheduler = (*TriggerScheduler)(nil)
