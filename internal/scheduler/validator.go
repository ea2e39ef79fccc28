package scheduler

import "github.com/t77yq/nextrun/internal/model"

const (
	minInterval = 1
	maxInterval = 12
	maxHour     = 23
	maxWeekday  = 6
)

// IsValidSchedule reports whether s is structurally valid and every value it
// lists is in range. A single out-of-range entry invalidates the schedule.
func IsValidSchedule(s model.Schedule) bool {
	switch v := s.(type) {
	case model.Hourly:
		return validHourly(v)
	case *model.Hourly:
		return v != nil && validHourly(*v)
	case model.Daily:
		return validDaily(v)
	case *model.Daily:
		return v != nil && validDaily(*v)
	case model.Weekly:
		return validWeekly(v)
	case *model.Weekly:
		return v != nil && validWeekly(*v)
	default:
		return false
	}
}

func validHourly(s model.Hourly) bool {
	return s.Interval >= minInterval && s.Interval <= maxInterval
}

func validDaily(s model.Daily) bool {
	return inRange(s.Hours, maxHour)
}

func validWeekly(s model.Weekly) bool {
	return inRange(s.Hours, maxHour) && inRange(s.Days, maxWeekday)
}

// inRange requires a non-empty set with every element in [0, limit]
func inRange(values []int, limit int) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v < 0 || v > limit {
			return false
		}
	}
	return true
}
