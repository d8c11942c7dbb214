// Package timegrid provides minute-of-day arithmetic on the five minute
// scheduling grid.
package timegrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Grid is the scheduling granularity in minutes.
const Grid = 5

// ErrInvalidTime is returned when a clock value is not a valid HH:MM string.
var ErrInvalidTime = errors.New("invalid time format")

// Parse converts "HH:MM" into minutes since midnight.
func Parse(hhmm string) (int, error) {
	v := strings.TrimSpace(hhmm)
	h, m, ok := strings.Cut(v, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, v)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, v)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, v)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, v)
	}
	return hour*60 + minute, nil
}

// ParseOptional parses s when it is non-empty. The boolean reports whether a
// valid value was found.
func ParseOptional(s string) (int, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	v, err := Parse(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Format renders minutes since midnight as HH:MM.
func Format(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// SnapUp rounds mins up to the next grid boundary.
func SnapUp(mins int) int {
	if r := mins % Grid; r != 0 {
		if mins < 0 {
			return mins - r
		}
		return mins + Grid - r
	}
	return mins
}

// SnapDown rounds mins down to the previous grid boundary.
func SnapDown(mins int) int {
	r := mins % Grid
	if r < 0 {
		r += Grid
	}
	return mins - r
}

// Aligned reports whether mins lies on the grid.
func Aligned(mins int) bool { return mins%Grid == 0 }

// Window is a half-open [Start, End) range in minutes.
type Window struct {
	Start int
	End   int
}

// Minutes returns the window length, or zero for an empty window.
func (w Window) Minutes() int {
	if w.End <= w.Start {
		return 0
	}
	return w.End - w.Start
}

// Empty reports whether the window contains no minute.
func (w Window) Empty() bool { return w.End <= w.Start }

// Intersect returns the overlap of both windows.
func (w Window) Intersect(o Window) Window {
	return Window{Start: max(w.Start, o.Start), End: min(w.End, o.End)}
}

// Contains reports whether [start, end) lies fully inside the window.
func (w Window) Contains(start, end int) bool {
	return start >= w.Start && end <= w.End
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share a minute.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
