// Package timeparse normalises the free-form date and clock labels captured
// from order-flow rows. Parse failures surface as *FormatError; callers in the
// live pipeline drop the offending record instead of propagating them.
package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// FormatError marks an unparseable date, clock, or numeric component.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("timeparse: %s: %q", e.Reason, e.Input)
}

func formatErr(input, reason string) error {
	return &FormatError{Input: input, Reason: reason}
}

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseClock parses "HH:MM", optionally prefixed "yesterday at", into minutes
// since local midnight. The yesterday form subtracts a full day, producing a
// negative value that must be preserved by callers.
func ParseClock(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	yesterday := false
	clockPart := trimmed
	if strings.HasPrefix(strings.ToLower(trimmed), "yesterday") {
		yesterday = true
		_, after, found := strings.Cut(trimmed, "at")
		if !found {
			return 0, formatErr(text, "yesterday prefix without clock")
		}
		clockPart = strings.TrimSpace(after)
	}

	minutes, err := clockMinutes(clockPart)
	if err != nil {
		return 0, err
	}
	if yesterday {
		minutes -= minutesPerDay
	}
	return minutes, nil
}

func clockMinutes(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 {
		return 0, formatErr(text, "clock must have exactly two components")
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, formatErr(text, "non-numeric hour")
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, formatErr(text, "non-numeric minute")
	}
	return hours*60 + minutes, nil
}

// ResolverOptions tune expiry resolution.
type ResolverOptions struct {
	// Now supplies the current instant; defaults to time.Now.
	Now func() time.Time
	// Location is the local zone for midnight-based resolution.
	Location *time.Location
	// TodayHour is the fixed reference hour used for the literal "today".
	TodayHour int
	// UTCOffsetHours is the fixed reference offset applied to
	// "DD MON at HH:MM" inputs and to the "today" reference hour.
	UTCOffsetHours int
}

// Resolver converts free-form expiry labels into absolute instants.
type Resolver struct {
	now       func() time.Time
	loc       *time.Location
	refZone   *time.Location
	todayHour int
}

// NewResolver constructs a Resolver, applying defaults for unset options.
func NewResolver(opts ResolverOptions) *Resolver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	hour := opts.TodayHour
	if hour == 0 {
		hour = 16
	}
	return &Resolver{
		now:       now,
		loc:       loc,
		refZone:   time.FixedZone("ref", opts.UTCOffsetHours*3600),
		todayHour: hour,
	}
}

// ResolveExpiry resolves "today", "tomorrow", "DD MON [YYYY]" and
// "DD MON [YYYY] at HH:MM" into an absolute instant. Month is numeric (1-12)
// or a three-letter abbreviation.
func (r *Resolver) ResolveExpiry(label string) (time.Time, error) {
	trimmed := strings.TrimSpace(label)
	now := r.now()

	switch strings.ToLower(trimmed) {
	case "today":
		ref := now.In(r.refZone)
		return time.Date(ref.Year(), ref.Month(), ref.Day(), r.todayHour, 0, 0, 0, r.refZone), nil
	case "tomorrow":
		local := now.In(r.loc).AddDate(0, 0, 1)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc), nil
	}

	datePart := trimmed
	clockPart := ""
	if before, after, found := strings.Cut(strings.ToLower(trimmed), " at "); found {
		datePart = strings.TrimSpace(trimmed[:len(before)])
		clockPart = strings.TrimSpace(after)
	}

	day, month, year, err := r.parseDate(datePart, now)
	if err != nil {
		return time.Time{}, err
	}

	resolved := time.Date(year, month, day, 0, 0, 0, 0, r.loc)
	if clockPart != "" {
		minutes, err := clockMinutes(clockPart)
		if err != nil {
			return time.Time{}, err
		}
		if minutes < 0 || minutes >= minutesPerDay {
			return time.Time{}, formatErr(label, "clock out of range")
		}
		resolved = time.Date(year, month, day, minutes/60, minutes%60, 0, 0, r.refZone)
	}

	// Round-trip check catches invalid calendar dates such as 31 Feb.
	if resolved.Day() != day || resolved.Month() != month || resolved.Year() != year {
		return time.Time{}, formatErr(label, "invalid calendar date")
	}
	return resolved, nil
}

func (r *Resolver) parseDate(text string, now time.Time) (int, time.Month, int, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return 0, 0, 0, formatErr(text, "date must be DD MON [YYYY]")
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, formatErr(text, "non-numeric day")
	}

	month, err := parseMonth(fields[1])
	if err != nil {
		return 0, 0, 0, err
	}

	year := now.In(r.loc).Year()
	if len(fields) == 3 {
		year, err = strconv.Atoi(fields[2])
		if err != nil {
			return 0, 0, 0, formatErr(text, "non-numeric year")
		}
	}
	return day, month, year, nil
}

func parseMonth(text string) (time.Month, error) {
	if numeric, err := strconv.Atoi(text); err == nil {
		if numeric < 1 || numeric > 12 {
			return 0, formatErr(text, "month out of range")
		}
		return time.Month(numeric), nil
	}
	if month, ok := monthAbbrev[strings.ToLower(text)]; ok {
		return month, nil
	}
	return 0, formatErr(text, "unrecognised month")
}
