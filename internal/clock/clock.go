package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidClock is returned when a 12-hour clock string cannot be parsed.
var ErrInvalidClock = errors.New("invalid clock time")

const (
	// ISODateLayout is the calendar date format used across the API ("2023-06-05").
	ISODateLayout = "2006-01-02"
	// SlotLayout renders a time-of-day as a bookable slot label ("9:00 AM").
	SlotLayout = "3:04 PM"
	// TimestampLayout matches the createdAt values already held in the ledger.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	invalidDate = "Invalid Date"
)

var dateLayouts = []string{ISODateLayout, "2006/01/02"}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int // 0-23
	Minute int // 0-59
}

// ParseClock parses "h:mmAM" / "h:mm PM" strings. Surrounding whitespace and a
// single space before the suffix are tolerated; the suffix is case-insensitive.
func ParseClock(text string) (Clock, error) {
	s := strings.TrimSpace(text)
	if len(s) < 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, text)
	}

	period := strings.ToUpper(s[len(s)-2:])
	if period != "AM" && period != "PM" {
		return Clock{}, fmt.Errorf("%w: %q: missing AM/PM", ErrInvalidClock, text)
	}
	body := strings.TrimSuffix(s[:len(s)-2], " ")

	hh, mm, ok := strings.Cut(body, ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, text)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return Clock{}, fmt.Errorf("%w: %q: hour out of range", ErrInvalidClock, text)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q: minute out of range", ErrInvalidClock, text)
	}

	switch {
	case period == "AM" && hour == 12:
		hour = 0
	case period == "PM" && hour != 12:
		hour += 12
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// ParseClockToday parses text and anchors it to today's date in local time.
func ParseClockToday(text string) (time.Time, error) {
	c, err := ParseClock(text)
	if err != nil {
		return time.Time{}, err
	}
	return c.On(time.Now()), nil
}

// On returns the clock time on day's calendar date, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) String() string {
	return time.Date(2000, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format(SlotLayout)
}

// ParseISODate parses a calendar date ("2023-06-15" or "2023/06/15") at local
// midnight.
func ParseISODate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatHumanDate renders a date as "Thursday, June 15, 2023". Input that is
// not a date yields "Invalid Date".
func FormatHumanDate(s string) string {
	t, err := ParseISODate(s)
	if err != nil {
		return invalidDate
	}
	return t.Format("Monday, January 2, 2006")
}

// ISOTimestamp formats t the way createdAt values are stored.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NewBookingID returns an opaque identifier for a saved appointment.
// Nothing checks it against existing ids.
func NewBookingID() string {
	return uuid.NewString()
}
