package scheduler

import "time"

const (
	scheduleStreamName    = "SCHEDULES"
	scheduleSubjects      = "schedule.>"
	scheduleAddSubject    = "schedule.add"
	scheduleRemoveSubject = "schedule.remove"

	scheduleAddConsumer    = "schedule-add-consumer"
	scheduleRemoveConsumer = "schedule-remove-consumer"

	streamMaxAge  = 24 * time.Hour
	streamMaxMsgs = -1
)
