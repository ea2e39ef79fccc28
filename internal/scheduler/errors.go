package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned when a job carries a schedule that never runs
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrScheduleNotFound is returned when a schedule ID is unknown
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrInvalidMarker is returned when a marker is not YYYYMMDDHH
	ErrInvalidMarker = errors.New("invalid marker")

	// ErrNeverRuns is returned when parsing the sentinel marker
	ErrNeverRuns = errors.New("schedule never runs")
)
