package model

import (
	"encoding/json"
	"time"
)

// ScheduleType identifies a schedule variant
type ScheduleType string

const (
	ScheduleTypeHourly ScheduleType = "hourly"
	ScheduleTypeDaily  ScheduleType = "daily"
	ScheduleTypeWeekly ScheduleType = "weekly"
)

// Schedule is a recurring trigger rule. The set of implementations is closed:
// Hourly, Daily and Weekly.
type Schedule interface {
	Type() ScheduleType
	schedule()
}

// Hourly runs every Interval hours, counted from the current instant
type Hourly struct {
	Interval int
}

// Daily runs once at each listed UTC hour, every day
type Daily struct {
	Hours []int
}

// Weekly runs at each listed UTC hour on each listed weekday (0 = Sunday)
type Weekly struct {
	Days  []int
	Hours []int
}

func (Hourly) Type() ScheduleType { return ScheduleTypeHourly }
func (Daily) Type() ScheduleType  { return ScheduleTypeDaily }
func (Weekly) Type() ScheduleType { return ScheduleTypeWeekly }

func (Hourly) schedule() {}
func (Daily) schedule()  {}
func (Weekly) schedule() {}

// ScheduleSpec is the serialized form of a Schedule
type ScheduleSpec struct {
	Type     ScheduleType `json:"type" mapstructure:"type"`
	Interval int          `json:"interval,omitempty" mapstructure:"interval"`
	Hours    []int        `json:"hours,omitempty" mapstructure:"hours"`
	Days     []int        `json:"days,omitempty" mapstructure:"days"`
}

// NewScheduleSpec encodes s. A nil schedule yields an empty spec.
func NewScheduleSpec(s Schedule) ScheduleSpec {
	switch v := s.(type) {
	case Hourly:
		return ScheduleSpec{Type: ScheduleTypeHourly, Interval: v.Interval}
	case *Hourly:
		if v != nil {
			return NewScheduleSpec(*v)
		}
	case Daily:
		return ScheduleSpec{Type: ScheduleTypeDaily, Hours: copyInts(v.Hours)}
	case *Daily:
		if v != nil {
			return NewScheduleSpec(*v)
		}
	case Weekly:
		return ScheduleSpec{Type: ScheduleTypeWeekly, Hours: copyInts(v.Hours), Days: copyInts(v.Days)}
	case *Weekly:
		if v != nil {
			return NewScheduleSpec(*v)
		}
	}
	return ScheduleSpec{}
}

// Schedule decodes s. It returns nil for an unknown type or when s
// carries fields of another variant.
func (s ScheduleSpec) Schedule() Schedule {
	switch s.Type {
	case ScheduleTypeHourly:
		if len(s.Hours) > 0 || len(s.Days) > 0 {
			return nil
		}
		return Hourly{Interval: s.Interval}
	case ScheduleTypeDaily:
		if s.Interval != 0 || len(s.Days) > 0 {
			return nil
		}
		return Daily{Hours: copyInts(s.Hours)}
	case ScheduleTypeWeekly:
		if s.Interval != 0 {
			return nil
		}
		return Weekly{Days: copyInts(s.Days), Hours: copyInts(s.Hours)}
	default:
		return nil
	}
}

func copyInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

// ScheduleStatus represents the state of a scheduled job
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusInvalid  ScheduleStatus = "invalid"
	ScheduleStatusDisabled ScheduleStatus = "disabled"
)

// ScheduledJob is a named schedule registered with the trigger scheduler
type ScheduledJob struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Spec          ScheduleSpec    `json:"schedule"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Status        ScheduleStatus  `json:"status"`
	LastRunTime   *time.Time      `json:"last_run_time,omitempty"`
	NextRunMarker string          `json:"next_run_marker,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Schedule decodes the job's schedule
func (j *ScheduledJob) Schedule() Schedule {
	return j.Spec.Schedule()
}
