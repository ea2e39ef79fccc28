package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/t77yq/nextrun/internal/model"
)

// cronSchedule adapts a model.Schedule to cron.Schedule
type cronSchedule struct {
	schedule model.Schedule
}

// CronSchedule returns a cron.Schedule that fires at the top of the hour
// computed by NextRun. Invalid schedules never fire.
func CronSchedule(s model.Schedule) cron.Schedule {
	return &cronSchedule{schedule: s}
}

// Next implements cron.Schedule
func (c *cronSchedule) Next(t time.Time) time.Time {
	next, ok := NextRun(t, c.schedule)
	if !ok {
		return time.Time{}
	}
	return next.Truncate(time.Hour)
}
