package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docappt/internal/clock"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
	}{
		{"9:30AM", 9, 30},
		{"3:45PM", 15, 45},
		{"12:00AM", 0, 0},
		{"12:00PM", 12, 0},
		{"10:15 AM", 10, 15},
		{"  5:00pm ", 17, 0},
		{"11:59PM", 23, 59},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := clock.ParseClock(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, c.Hour)
			assert.Equal(t, tt.minute, c.Minute)
		})
	}
}

func TestParseClockRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "AM", "9AM", "9:5AM", "13:00PM", "0:30AM", "9:60AM", "9:00", "nine:00AM", "9:00  AM", "9:00XM"} {
		t.Run(in, func(t *testing.T) {
			_, err := clock.ParseClock(in)
			require.ErrorIs(t, err, clock.ErrInvalidClock)
		})
	}
}

func TestClockOn(t *testing.T) {
	day := time.Date(2023, 6, 5, 22, 11, 9, 500, time.UTC)
	c, err := clock.ParseClock("3:45PM")
	require.NoError(t, err)

	got := c.On(day)
	assert.Equal(t, time.Date(2023, 6, 5, 15, 45, 0, 0, time.UTC), got)
	assert.Equal(t, "3:45 PM", c.String())
}

func TestParseClockToday(t *testing.T) {
	got, err := clock.ParseClockToday("9:30AM")
	require.NoError(t, err)

	now := time.Now()
	assert.Equal(t, now.Day(), got.Day())
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Zero(t, got.Second())
}

func TestFormatHumanDate(t *testing.T) {
	assert.Contains(t, clock.FormatHumanDate("2023-06-15"), "June 15, 2023")
	assert.Equal(t, "Thursday, June 15, 2023", clock.FormatHumanDate("2023-06-15"))
	assert.Contains(t, clock.FormatHumanDate("2023/12/25"), "December 25, 2023")
	assert.Equal(t, "Invalid Date", clock.FormatHumanDate("2023/13/45"))
	assert.Equal(t, "Invalid Date", clock.FormatHumanDate(""))
}

func TestNewBookingID(t *testing.T) {
	a := clock.NewBookingID()
	b := clock.NewBookingID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestISOTimestamp(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 123456789, time.FixedZone("X", 2*3600))
	assert.Equal(t, "2023-06-01T10:00:00.123Z", clock.ISOTimestamp(ts))
}
