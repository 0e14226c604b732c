package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docappt/internal/clock"
	"docappt/internal/kv"
	appLog "docappt/internal/log"
	"docappt/internal/model"
)

// StoreKey is the key-value entry holding the appointment list.
const StoreKey = "appointments"

// ErrCorruptLedger is returned when the stored value is neither a JSON array
// nor null.
var ErrCorruptLedger = errors.New("stored appointments are not a JSON array")

// Counter is satisfied by prometheus.Counter.
type Counter interface {
	Inc()
}

// Ledger appends bookings to the stored appointment list.
//
// Book is a read-modify-write of the whole list with no locking: two
// concurrent writers can lose one of the updates.
type Ledger struct {
	store   kv.Store
	now     func() time.Time
	newID   func() string
	counter Counter
}

type Option func(*Ledger)

// WithClock overrides the createdAt time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the appointment id source.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithCounter counts successful bookings.
func WithCounter(c Counter) Option {
	return func(l *Ledger) { l.counter = c }
}

func NewLedger(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		newID: clock.NewBookingID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Book stores req as a new appointment and returns it. Requests are not
// validated and identical requests produce distinct records.
func (l *Ledger) Book(ctx context.Context, req model.BookingRequest) (model.SavedAppointment, error) {
	existing, err := l.Appointments(ctx)
	if err != nil {
		return model.SavedAppointment{}, err
	}

	appt := model.SavedAppointment{
		BookingRequest: req,
		ID:             l.newID(),
		CreatedAt:      clock.ISOTimestamp(l.now()),
	}

	data, err := json.Marshal(append(existing, appt))
	if err != nil {
		return model.SavedAppointment{}, fmt.Errorf("encode appointments: %w", err)
	}
	if err := l.store.Set(ctx, StoreKey, data); err != nil {
		return model.SavedAppointment{}, fmt.Errorf("save appointments: %w", err)
	}

	if l.counter != nil {
		l.counter.Inc()
	}
	appLog.Info("appointment booked", "id", appt.ID, "doctor", appt.Doctor, "date", appt.Date, "time", appt.Time)
	return appt, nil
}

// Appointments returns every stored appointment in insertion order, including
// elements that do not look like appointments.
func (l *Ledger) Appointments(ctx context.Context) ([]model.SavedAppointment, error) {
	data, ok, err := l.store.Get(ctx, StoreKey)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !ok || len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []model.SavedAppointment{}, nil
	}

	if data[0] != '[' {
		return nil, ErrCorruptLedger
	}
	var list []model.SavedAppointment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}
	if list == nil {
		list = []model.SavedAppointment{}
	}
	return list, nil
}
