package queue

import (
	"fmt"
	"strings"
	"time"
)

const (
	namePrefix = "drip-messages-"
	testPrefix = "test-"
	dateLayout = "2006-01-02"
)

// NameForDate derives the day-queue name for a calendar date, e.g.
// "drip-messages-2025-01-15". With testMode set the name is prefixed
// "test-". The mapping is bijective: ParseName inverts it.
func NameForDate(d time.Time, testMode bool) string {
	name := namePrefix + d.UTC().Format(dateLayout)
	if testMode {
		name = testPrefix + name
	}
	return name
}

// ParseName extracts the calendar date from a day-queue name produced by
// NameForDate, accepting both plain and test-prefixed forms.
func ParseName(name string) (time.Time, error) {
	trimmed := strings.TrimPrefix(name, testPrefix)
	if !strings.HasPrefix(trimmed, namePrefix) {
		return time.Time{}, fmt.Errorf("not a day-queue name: %q", name)
	}
	d, err := time.Parse(dateLayout, strings.TrimPrefix(trimmed, namePrefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date in queue name %q: %w", name, err)
	}
	return d, nil
}

// FormatDate renders a date the way queue names and entry payloads carry
// it: the civil date in UTC.
func FormatDate(d time.Time) string {
	return d.UTC().Format(dateLayout)
}

// Midnight truncates a time to the start of its UTC civil day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExpiredNames lists the queue names outside the retention window: every
// date from today-retention back through scan additional days, both plain
// and test-prefixed. Queues for the most recent retention-1 days survive.
// These are the queues the startup janitor drops.
func ExpiredNames(today time.Time, retention, scan int) []string {
	names := make([]string, 0, (scan+1)*2)
	for i := 0; i <= scan; i++ {
		day := Midnight(today).AddDate(0, 0, -(retention + i))
		names = append(names, NameForDate(day, false), NameForDate(day, true))
	}
	return names
}
