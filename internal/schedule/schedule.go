package schedule

import (
	"fmt"
	"strings"
	"time"

	"jobmatch-service/internal/model"
)

// DateLayout is the calendar date format used by availability entries and
// specific-date schedules.
const DateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Weekday parses a full or three-letter English day name, case-insensitively.
func Weekday(name string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// ParseDate parses a "2006-01-02" date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Matches reports whether a seeker with the given availability can work the
// job schedule. An empty availability matches everything; booked entries
// never match. Days are compared by weekday only; time slots are not
// considered.
func Matches(job model.Schedule, avail model.Availability) bool {
	if len(avail) == 0 {
		return true
	}
	free := availableWeekdays(avail)
	for _, day := range job.Days {
		wd, ok := dayWeekday(job.Kind, day)
		if ok && free[wd] {
			return true
		}
	}
	return false
}

// MatchesExactDate is the stricter variant for specific-date schedules: a
// job date only matches an availability entry on the same calendar date.
// Recurring schedules fall back to Matches.
func MatchesExactDate(job model.Schedule, avail model.Availability) bool {
	if job.Kind != model.ScheduleSpecific {
		return Matches(job, avail)
	}
	if len(avail) == 0 {
		return true
	}
	dates := make(map[string]bool, len(avail))
	for _, d := range avail {
		if !d.Booked {
			dates[d.Date] = true
		}
	}
	for _, day := range job.Days {
		if dates[day.Date] {
			return true
		}
	}
	return false
}

// AvailabilityFromWeekdays converts the legacy day-keyed roster into dated
// entries, placing each named weekday on its next occurrence on or after
// from. Unknown day names are rejected. Entries are ordered by date.
func AvailabilityFromWeekdays(days map[string][]model.Slot, from time.Time) (model.Availability, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	byOffset := make(map[int]model.AvailabilityDay, len(days))
	for name, slots := range days {
		wd, ok := Weekday(name)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q: %w", name, model.ErrInvalidInput)
		}
		offset := (int(wd) - int(start.Weekday()) + 7) % 7
		byOffset[offset] = model.AvailabilityDay{
			Date:  start.AddDate(0, 0, offset).Format(DateLayout),
			Slots: append([]model.Slot(nil), slots...),
		}
	}

	out := make(model.Availability, 0, len(byOffset))
	for offset := 0; offset < 7; offset++ {
		if d, ok := byOffset[offset]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// MarkBooked returns a copy of avail with every entry whose weekday falls on
// one of the job's days flagged as booked, plus the number of entries newly
// flagged.
func MarkBooked(job model.Schedule, avail model.Availability) (model.Availability, int) {
	out := avail.Clone()
	wanted := make(map[time.Weekday]bool, len(job.Days))
	for _, day := range job.Days {
		if wd, ok := dayWeekday(job.Kind, day); ok {
			wanted[wd] = true
		}
	}

	marked := 0
	for i, d := range out {
		if d.Booked {
			continue
		}
		t, err := ParseDate(d.Date)
		if err != nil {
			continue
		}
		if wanted[t.Weekday()] {
			out[i].Booked = true
			marked++
		}
	}
	return out, marked
}

// Validate checks the shape of a job schedule: a known kind,
// at least one day, and at least one slot per day with a parseable day key.
func Validate(s model.Schedule) error {
	if s.Kind != model.ScheduleRecurring && s.Kind != model.ScheduleSpecific {
		return fmt.Errorf("schedule kind %q: %w", s.Kind, model.ErrInvalidInput)
	}
	if len(s.Days) == 0 {
		return fmt.Errorf("schedule needs at least one day: %w", model.ErrInvalidInput)
	}
	for i, day := range s.Days {
		if _, ok := dayWeekday(s.Kind, day); !ok {
			return fmt.Errorf("schedule day %d is not a valid %s entry: %w", i, s.Kind, model.ErrInvalidInput)
		}
		if len(day.Slots) == 0 {
			return fmt.Errorf("schedule day %d has no time slots: %w", i, model.ErrInvalidInput)
		}
	}
	return nil
}

// ValidateAvailability checks that every entry carries a parseable date.
func ValidateAvailability(a model.Availability) error {
	for i, d := range a {
		if _, err := ParseDate(d.Date); err != nil {
			return fmt.Errorf("availability entry %d date %q: %w", i, d.Date, model.ErrInvalidInput)
		}
	}
	return nil
}

func availableWeekdays(avail model.Availability) map[time.Weekday]bool {
	free := make(map[time.Weekday]bool, 7)
	for _, d := range avail {
		if d.Booked {
			continue
		}
		t, err := ParseDate(d.Date)
		if err != nil {
			continue
		}
		free[t.Weekday()] = true
	}
	return free
}

func dayWeekday(kind model.ScheduleKind, day model.ScheduleDay) (time.Weekday, bool) {
	if kind == model.ScheduleSpecific {
		t, err := ParseDate(day.Date)
		if err != nil {
			return 0, false
		}
		return t.Weekday(), true
	}
	return Weekday(day.Weekday)
}
