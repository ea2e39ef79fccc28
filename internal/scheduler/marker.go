package scheduler

import (
	"fmt"
	"time"
)

// Sentinel is the marker returned for a schedule that never runs. It sorts
// after every real marker.
const Sentinel = "9999999999"

const markerLayout = "2006010215"

// FormatMarker renders t as a YYYYMMDDHH marker in UTC
func FormatMarker(t time.Time) string {
	return t.UTC().Format(markerLayout)
}

// ParseMarker parses a YYYYMMDDHH marker into the UTC top of that hour
func ParseMarker(marker string) (time.Time, error) {
	if marker == Sentinel {
		return time.Time{}, ErrNeverRuns
	}
	if len(marker) != len(markerLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMarker, marker)
	}
	t, err := time.ParseInLocation(markerLayout, marker, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidMarker, marker, err)
	}
	return t, nil
}
