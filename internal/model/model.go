package model

import (
	"bytes"
	"encoding/json"
)

// ScheduleEntry is one weekday's recurring availability window for one doctor,
// exactly as delivered by the schedule feed.
type ScheduleEntry struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	// DayOfWeek is the full English weekday name ("Monday").
	DayOfWeek string `json:"day_of_week"`
	// AvailableAt / AvailableUntil are 12-hour clock strings ("9:00AM").
	AvailableAt    string `json:"available_at"`
	AvailableUntil string `json:"available_until"`
}

// Doctor aggregates the schedule entries sharing a doctor name.
// Timezone is taken from the first entry seen for that doctor.
type Doctor struct {
	Name      string          `json:"name"`
	Timezone  string          `json:"timezone"`
	Schedules []ScheduleEntry `json:"schedules"`
}

// DateOption is a selectable calendar date for the booking flow.
type DateOption struct {
	Value     string `json:"value"`     // yyyy-MM-dd
	Day       string `json:"day"`       // Mon
	Date      string `json:"date"`      // 5 Jun
	DayOfWeek string `json:"dayOfWeek"` // Monday
}

// BookingRequest is what a caller supplies to book an appointment.
type BookingRequest struct {
	Doctor   string `json:"doctor"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// SavedAppointment is an immutable, persisted booking.
//
// Records decoded from storage remember their original bytes and encode back to
// them unchanged, so entries the ledger does not understand survive appends.
type SavedAppointment struct {
	BookingRequest
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`

	raw json.RawMessage
}

type savedAppointmentJSON struct {
	Doctor    string `json:"doctor"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Timezone  string `json:"timezone"`
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Raw returns the stored bytes for a decoded record, nil for fresh ones.
func (a SavedAppointment) Raw() json.RawMessage {
	return a.raw
}

// Malformed reports whether the record was decoded from storage but did not
// have the shape of an appointment object.
func (a SavedAppointment) Malformed() bool {
	if a.raw == nil {
		return false
	}
	if len(a.raw) == 0 || a.raw[0] != '{' {
		return true
	}
	var probe savedAppointmentJSON
	return json.Unmarshal(a.raw, &probe) != nil
}

func (a SavedAppointment) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return json.Marshal(savedAppointmentJSON{
		Doctor:    a.Doctor,
		Date:      a.Date,
		Time:      a.Time,
		Timezone:  a.Timezone,
		ID:        a.ID,
		CreatedAt: a.CreatedAt,
	})
}

// UnmarshalJSON never fails on shape: fields that decode are filled in, the
// rest stay empty, and the original bytes are kept.
func (a *SavedAppointment) UnmarshalJSON(data []byte) error {
	*a = SavedAppointment{raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	str := func(key string) string {
		var s string
		if v, ok := fields[key]; ok {
			_ = json.Unmarshal(v, &s)
		}
		return s
	}
	a.Doctor = str("doctor")
	a.Date = str("date")
	a.Time = str("time")
	a.Timezone = str("timezone")
	a.ID = str("id")
	a.CreatedAt = str("createdAt")
	return nil
}
