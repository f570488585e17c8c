package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxOccurrences bounds the size of a single expanded series.
const MaxOccurrences = 1000

// Pattern describes a weekly recurring series request.
type Pattern struct {
	// Weekdays selects the days of the week that receive an occurrence.
	Weekdays []time.Weekday
	// EndDate is the last calendar date (inclusive) that may receive an
	// occurrence. Only its year, month and day are used, read in EndDate's
	// own location, so a date parsed as UTC midnight names the same day
	// in every studio zone.
	EndDate time.Time
	// TimeOfDay is the local start time in "HH:MM" form.
	TimeOfDay string
	// Duration is the length of each occurrence.
	Duration time.Duration
	// SkipFirst starts enumeration on the day after the anchor date.
	SkipFirst bool
}

// Occurrence represents one generated instance of a pattern.
type Occurrence struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

// Engine expands recurrence patterns into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates calendar dates in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

var (
	// ErrInvalidTimeOfDay indicates the pattern time is not a valid HH:MM value.
	ErrInvalidTimeOfDay = errors.New("recurrence: time must be HH:MM")
	// ErrInvalidDuration indicates the occurrence duration is not positive.
	ErrInvalidDuration = errors.New("recurrence: duration must be positive")
	// ErrNoWeekdays indicates the pattern selects no weekday.
	ErrNoWeekdays = errors.New("recurrence: at least one weekday is required")
	// ErrInvalidWeekday indicates a weekday outside 0-6.
	ErrInvalidWeekday = errors.New("recurrence: weekday must be between 0 and 6")
	// ErrInvalidWindow indicates the end date is missing.
	ErrInvalidWindow = errors.New("recurrence: end date is required")
	// ErrTooManyOccurrences indicates the window produces more than MaxOccurrences.
	ErrTooManyOccurrences = fmt.Errorf("recurrence: series exceeds %d occurrences", MaxOccurrences)
)

// Expand enumerates every calendar date from the anchor's date (or the next
// day when SkipFirst is set) through EndDate inclusive, keeps the dates whose
// weekday is selected, and places an occurrence at TimeOfDay on each.
//
// Dates are evaluated in the engine location, so daylight saving changes keep
// the wall-clock start time stable rather than the UTC offset.
func (e *Engine) Expand(anchor time.Time, pattern Pattern) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	hour, minute, err := ParseTimeOfDay(pattern.TimeOfDay)
	if err != nil {
		return nil, err
	}
	if pattern.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if pattern.EndDate.IsZero() {
		return nil, ErrInvalidWindow
	}
	weekdays, err := weekdaySet(pattern.Weekdays)
	if err != nil {
		return nil, err
	}

	current := dateOf(anchor, loc)
	if pattern.SkipFirst {
		current = current.AddDate(0, 0, 1)
	}
	ey, em, ed := pattern.EndDate.Date()
	last := time.Date(ey, em, ed, 0, 0, 0, 0, loc)

	occurrences := make([]Occurrence, 0)
	for !current.After(last) {
		if _, ok := weekdays[current.Weekday()]; ok {
			if len(occurrences) == MaxOccurrences {
				return nil, ErrTooManyOccurrences
			}
			start := time.Date(current.Year(), current.Month(), current.Day(), hour, minute, 0, 0, loc)
			occurrences = append(occurrences, Occurrence{
				Date:  current,
				Start: start,
				End:   start.Add(pattern.Duration),
			})
		}
		current = current.AddDate(0, 0, 1)
	}

	return occurrences, nil
}

// ParseTimeOfDay parses an "HH:MM" value in 24 hour form.
func ParseTimeOfDay(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || !twoDigits(parts[0]) || !twoDigits(parts[1]) {
		return 0, 0, ErrInvalidTimeOfDay
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	return hour, minute, nil
}

func twoDigits(value string) bool {
	return len(value) == 2 && value[0] >= '0' && value[0] <= '9' && value[1] >= '0' && value[1] <= '9'
}

// WeekdaysFromInts converts 0-6 (Sunday first) integers to weekdays.
func WeekdaysFromInts(days []int) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		if day < int(time.Sunday) || day > int(time.Saturday) {
			return nil, ErrInvalidWeekday
		}
		out = append(out, time.Weekday(day))
	}
	return out, nil
}

func weekdaySet(days []time.Weekday) (map[time.Weekday]struct{}, error) {
	if len(days) == 0 {
		return nil, ErrNoWeekdays
	}
	set := make(map[time.Weekday]struct{}, len(days))
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			return nil, ErrInvalidWeekday
		}
		set[day] = struct{}{}
	}
	return set, nil
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
