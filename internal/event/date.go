package event

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrUnparsableTime means the clock fragment matched neither grammar.
	ErrUnparsableTime = errors.New("unparsable time fragment")
	// ErrInvalidDate means month and day do not form a calendar date.
	ErrInvalidDate = errors.New("invalid date")
)

// DateParts are the raw fragments found near one event block.
type DateParts struct {
	Month time.Month
	Day   int
	Year  int    // 0 when the page shows no year
	Clock string // e.g. "8:00 pm" or "8pm"
}

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseMonth maps a three-letter month token, in any case, to a month.
func ParseMonth(token string) (time.Month, bool) {
	m, ok := months[strings.ToLower(strings.TrimSpace(token))]
	return m, ok
}

// IsMonthToken reports whether s is exactly a month abbreviation.
func IsMonthToken(s string) bool {
	_, ok := ParseMonth(s)
	return ok
}

// ResolveYear picks the year for a month shown without one. A month more
// than one month behind now's month is taken to be next year's.
func ResolveYear(month time.Month, now time.Time) int {
	year := now.Year()
	if int(month) < int(now.Month())-1 {
		year++
	}
	return year
}

var clockPattern = regexp.MustCompile(`(?i)^(\d{1,2}(?::\d{2})?)\s*(am|pm)$`)

// clockLayouts are the two accepted grammars: "H:MM am/pm" and "H am/pm".
var clockLayouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 3 PM",
}

// Resolve builds the start instant of an event in loc. The year comes from
// parts when present, otherwise from now (see ResolveYear). There is no
// default time: an unreadable clock is an error.
func Resolve(parts DateParts, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	year := parts.Year
	if year == 0 {
		year = ResolveYear(parts.Month, now.In(loc))
	}

	day := time.Date(year, parts.Month, parts.Day, 0, 0, 0, 0, loc)
	if parts.Month < time.January || parts.Month > time.December ||
		day.Month() != parts.Month || day.Day() != parts.Day {
		return time.Time{}, fmt.Errorf("%w: %d-%02d-%02d", ErrInvalidDate, year, int(parts.Month), parts.Day)
	}

	clock, ok := normalizeClock(parts.Clock)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, parts.Clock)
	}

	value := fmt.Sprintf("%04d-%02d-%02d %s", year, int(parts.Month), parts.Day, clock)
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, parts.Clock)
}

// normalizeClock turns "8:00pm", "8 PM" or " 8:00 p.m." into "8:00 PM" form.
func normalizeClock(s string) (string, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1] + " " + strings.ToUpper(m[2]), true
}
