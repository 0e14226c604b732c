package availability

import (
	"time"

	"github.com/teambition/rrule-go"

	"docappt/internal/clock"
	appLog "docappt/internal/log"
	"docappt/internal/model"
)

const (
	// DefaultHorizonDays is the length of the rolling booking window.
	DefaultHorizonDays = 14
	// MaxHorizonDays caps the booking window a caller may ask for.
	MaxHorizonDays = 366
	// SlotStep is the distance between consecutive slot start times.
	SlotStep = 30 * time.Minute
)

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

var ruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// AvailableDates lists the dates within horizonDays of reference (reference's
// own date included) that fall on a weekday the doctor works. Results are in
// chronological order. A non-positive horizon means DefaultHorizonDays; larger
// horizons are capped at MaxHorizonDays.
func AvailableDates(doctor model.Doctor, reference time.Time, horizonDays int) []model.DateOption {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if horizonDays > MaxHorizonDays {
		horizonDays = MaxHorizonDays
	}
	result := make([]model.DateOption, 0)

	byDay := make([]rrule.Weekday, 0, 7)
	seen := make(map[time.Weekday]bool)
	for _, s := range doctor.Schedules {
		wd, ok := parseWeekday(s.DayOfWeek)
		if !ok || seen[wd] {
			continue
		}
		seen[wd] = true
		byDay = append(byDay, ruleWeekdays[wd])
	}
	// An empty BYDAY would make the rule recur on DTSTART's weekday.
	if len(byDay) == 0 {
		return result
	}

	// Noon exists on every calendar day; midnight is skipped where DST starts at 00:00.
	y, m, d := reference.Date()
	start := time.Date(y, m, d, 12, 0, 0, 0, reference.Location())
	until := time.Date(y, m, d+horizonDays-1, 12, 0, 0, 0, reference.Location())

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     until,
		Byweekday: byDay,
	})
	if err != nil {
		appLog.Error("availability: build recurrence", err, "doctor", doctor.Name)
		return result
	}

	for _, day := range rule.All() {
		result = append(result, dateOption(day))
	}
	return result
}

func dateOption(day time.Time) model.DateOption {
	name := day.Weekday().String()
	return model.DateOption{
		Value:     day.Format(clock.ISODateLayout),
		Day:       name[:3],
		Date:      day.Format("2 Jan"),
		DayOfWeek: name,
	}
}

// AvailableTimeSlots lists the 30-minute slot labels ("9:00 AM") for the
// doctor on isoDate. The first slot is the window start; later slots are
// emitted while they fall strictly before the window end, so a 9:00AM-5:00PM
// window ends at "4:30 PM" and a zero-length window yields its single start.
// Any unparseable input or a day off yields an empty list.
func AvailableTimeSlots(doctor model.Doctor, isoDate string) []string {
	slots := make([]string, 0)

	date, err := clock.ParseISODate(isoDate)
	if err != nil {
		return slots
	}

	entry, ok := scheduleFor(doctor, date.Weekday())
	if !ok {
		return slots
	}

	startClock, err := clock.ParseClock(entry.AvailableAt)
	if err != nil {
		appLog.Debug("availability: bad start time", "doctor", doctor.Name, "value", entry.AvailableAt)
		return slots
	}
	endClock, err := clock.ParseClock(entry.AvailableUntil)
	if err != nil {
		appLog.Debug("availability: bad end time", "doctor", doctor.Name, "value", entry.AvailableUntil)
		return slots
	}

	start := startClock.On(date)
	end := endClock.On(date)
	if start.After(end) {
		return slots
	}

	slots = append(slots, start.Format(clock.SlotLayout))
	for cur := start.Add(SlotStep); cur.Before(end); cur = cur.Add(SlotStep) {
		slots = append(slots, cur.Format(clock.SlotLayout))
	}
	return slots
}

// parseWeekday maps a full English weekday name, matched exactly.
func parseWeekday(name string) (time.Weekday, bool) {
	wd, ok := weekdays[name]
	return wd, ok
}

// scheduleFor returns the doctor's first entry for weekday.
func scheduleFor(doctor model.Doctor, weekday time.Weekday) (model.ScheduleEntry, bool) {
	for _, s := range doctor.Schedules {
		if wd, ok := parseWeekday(s.DayOfWeek); ok && wd == weekday {
			return s, true
		}
	}
	return model.ScheduleEntry{}, false
}
