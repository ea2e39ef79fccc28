package scheduler

import (
	"sort"
	"time"

	"github.com/t77yq/nextrun/internal/model"
)

// GetNextUTC returns the next trigger of s after now as a YYYYMMDDHH marker,
// or Sentinel when s is invalid.
func GetNextUTC(now time.Time, s model.Schedule) string {
	next, ok := NextRun(now, s)
	if !ok {
		return Sentinel
	}
	return FormatMarker(next)
}

// NextRun returns the next trigger instant of s after now in UTC. The second
// result is false when s is invalid. Minutes and seconds of now are kept.
func NextRun(now time.Time, s model.Schedule) (time.Time, bool) {
	if !IsValidSchedule(s) {
		return time.Time{}, false
	}

	t := now.UTC()
	switch v := deref(s).(type) {
	case model.Hourly:
		return t.Add(time.Duration(v.Interval) * time.Hour), true
	case model.Daily:
		return nextDaily(t, v.Hours), true
	case model.Weekly:
		return nextWeekly(t, v.Days, v.Hours), true
	}
	return time.Time{}, false
}

func nextDaily(t time.Time, hours []int) time.Time {
	sorted := sortedCopy(hours)
	if h, ok := firstAfter(sorted, t.Hour()); ok {
		return atHour(t, 0, h)
	}
	return atHour(t, 1, sorted[0])
}

func nextWeekly(t time.Time, days, hours []int) time.Time {
	sortedHours := sortedCopy(hours)
	sortedDays := sortedCopy(days)
	today := int(t.Weekday())

	if contains(sortedDays, today) {
		if h, ok := firstAfter(sortedHours, t.Hour()); ok {
			return atHour(t, 0, h)
		}
	}

	// Next listed day strictly after today. Wrapping to today itself means a
	// full week ahead.
	offset := 7
	if d, ok := firstAfter(sortedDays, today); ok {
		offset = d - today
	} else if sortedDays[0] != today {
		offset = sortedDays[0] + 7 - today
	}
	return atHour(t, offset, sortedHours[0])
}

// atHour moves t forward by days and sets the hour, letting time.Date
// normalize month and year rollover.
func atHour(t time.Time, days, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+days, hour, t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// firstAfter returns the smallest element of sorted strictly greater than v
func firstAfter(sorted []int, v int) (int, bool) {
	i := sort.SearchInts(sorted, v+1)
	if i == len(sorted) {
		return 0, false
	}
	return sorted[i], true
}

func contains(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func sortedCopy(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	sort.Ints(out)
	return out
}

func deref(s model.Schedule) model.Schedule {
	switch v := s.(type) {
	case *model.Hourly:
		return *v
	case *model.Daily:
		return *v
	case *model.Weekly:
		return *v
	}
	return s
}

// SortByNextRun orders jobs by their next run marker. Jobs that never run
// carry Sentinel and end up last.
func SortByNextRun(jobs []*model.ScheduledJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return markerOf(jobs[i]) < markerOf(jobs[j])
	})
}

func markerOf(job *model.ScheduledJob) string {
	if job.NextRunMarker == "" {
		return Sentinel
	}
	return job.NextRunMarker
}
