package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"docappt/internal/clock"
	appLog "docappt/internal/log"
	"docappt/internal/model"
)

// AppointmentDuration is the length given to exported events; it matches the
// slot step of the booking flow.
const AppointmentDuration = 30 * time.Minute

const productID = "-//docappt//appointments//EN"

// ExportAppointments builds a calendar with one VEVENT per appointment.
//
// Appointment dates and times are wall-clock values; they are interpreted in
// loc (time.Local when nil). Records that cannot be placed on a calendar are
// skipped and reported in the returned error slice.
func ExportAppointments(appts []model.SavedAppointment, loc *time.Location) (*ical.Calendar, []error) {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Booked appointments")

	errs := make([]error, 0)
	for i, a := range appts {
		start, err := appointmentStart(a, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("appointment %d (id=%q): %w", i, a.ID, err))
			continue
		}

		uid := a.ID
		if uid == "" {
			uid = fmt.Sprintf("appointment-%d", i)
		}
		ev := cal.AddEvent(uid + "@docappt")
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(AppointmentDuration))
		ev.SetSummary("Appointment with " + a.Doctor)
		if a.Timezone != "" {
			ev.SetDescription("Doctor timezone: " + a.Timezone)
		}

		stamp := time.Now()
		if created, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
			stamp = created
			ev.SetCreatedTime(created)
		}
		ev.SetDtStampTime(stamp)
	}

	if len(errs) > 0 {
		appLog.Debug("ics export skipped appointments", "skipped", len(errs), "total", len(appts))
	}
	return cal, errs
}

func appointmentStart(a model.SavedAppointment, loc *time.Location) (time.Time, error) {
	if a.Malformed() {
		return time.Time{}, fmt.Errorf("not an appointment record")
	}
	day, err := time.ParseInLocation(clock.ISODateLayout, strings.TrimSpace(a.Date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", a.Date, err)
	}
	c, err := clock.ParseClock(a.Time)
	if err != nil {
		return time.Time{}, err
	}
	return c.On(day), nil
}

// Write serializes cal to w.
func Write(w io.Writer, cal *ical.Calendar) error {
	return cal.SerializeTo(w)
}
