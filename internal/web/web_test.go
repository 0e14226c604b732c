package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docappt/internal/booking"
	"docappt/internal/kv"
	"docappt/internal/metrics"
	"docappt/internal/model"
	"docappt/internal/schedule"
	"docappt/internal/web"
)

var entries = []model.ScheduleEntry{
	{Name: "Dr. John Smith", Timezone: "Europe/London", DayOfWeek: "Monday", AvailableAt: "9:00AM", AvailableUntil: "5:00PM"},
	{Name: "Dr. John Smith", Timezone: "Europe/London", DayOfWeek: "Wednesday", AvailableAt: "10:00AM", AvailableUntil: "11:00AM"},
	{Name: "Dr. Jane Doe", Timezone: "America/New_York", DayOfWeek: "Friday", AvailableAt: "1:00PM", AvailableUntil: "2:00PM"},
}

// Thursday.
var reference = time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)

type sourceFunc func(ctx context.Context) (schedule.FetchResult, error)

func (f sourceFunc) Fetch(ctx context.Context) (schedule.FetchResult, error) {
	return f(ctx)
}

type fixture struct {
	server  *web.Server
	handler http.Handler
	store   *kv.MemoryStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, src schedule.Source) *fixture {
	t.Helper()

	schedules := schedule.NewStore()
	schedules.Replace(entries)

	store := kv.NewMemoryStore()
	m := metrics.New("docappt")
	ledger := booking.NewLedger(store,
		booking.WithClock(func() time.Time { return reference }),
		booking.WithCounter(m.BookingsTotal),
	)

	s := web.NewServer(web.Options{
		Schedules: schedules,
		Source:    src,
		Ledger:    ledger,
		Metrics:   m,
		Now:       func() time.Time { return reference },
	})
	return &fixture{server: s, handler: s.Handler(), store: store, metrics: m}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDoctors(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/doctors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	doctors := decode[[]model.Doctor](t, rec)
	require.Len(t, doctors, 2)
	assert.Equal(t, "Dr. John Smith", doctors[0].Name)
	assert.Len(t, doctors[0].Schedules, 2)
	assert.Equal(t, "Dr. Jane Doe", doctors[1].Name)

	rec = f.do(t, http.MethodGet, "/api/doctors/Dr.%20Jane%20Doe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "America/New_York", decode[model.Doctor](t, rec).Timezone)

	rec = f.do(t, http.MethodGet, "/api/doctors/Dr.%20Nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor not found", decode[map[string]string](t, rec)["error"])
}

func TestDates(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/doctors/Dr.%20John%20Smith/dates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dates := decode[[]model.DateOption](t, rec)

	values := make([]string, 0, len(dates))
	for _, d := range dates {
		values = append(values, d.Value)
	}
	assert.Equal(t, []string{"2023-06-05", "2023-06-07", "2023-06-12", "2023-06-14"}, values)
	assert.Equal(t, model.DateOption{Value: "2023-06-05", Day: "Mon", Date: "5 Jun", DayOfWeek: "Monday"}, dates[0])

	rec = f.do(t, http.MethodGet, "/api/doctors/Dr.%20John%20Smith/dates?days=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.DateOption](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/doctors/Dr.%20Nobody/dates", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDatesHorizonIsCapped(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/doctors/Dr.%20John%20Smith/dates?days=100000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dates := decode[[]model.DateOption](t, rec)
	require.NotEmpty(t, dates)
	// 366 days from Thursday 2023-06-01 end on Friday 2024-05-31.
	assert.Equal(t, "2024-05-29", dates[len(dates)-1].Value)
	assert.Len(t, dates, 104)
}

func TestSlots(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/doctors/Dr.%20John%20Smith/slots?date=2023-06-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]string](t, rec)
	require.Len(t, slots, 16)
	assert.Equal(t, "9:00 AM", slots[0])
	assert.Equal(t, "4:30 PM", slots[15])

	for _, date := range []string{"", "not-a-date", "2023-06-06"} {
		rec = f.do(t, http.MethodGet, "/api/doctors/Dr.%20John%20Smith/slots?date="+date, "")
		require.Equal(t, http.StatusOK, rec.Code, date)
		assert.Equal(t, "[]\n", rec.Body.String(), date)
	}
}

func TestBookAndList(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/appointments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	body := `{"doctor":"Dr. John Smith","date":"2023-06-05","time":"10:00 AM","timezone":"Europe/London"}`
	rec = f.do(t, http.MethodPost, "/api/appointments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[map[string]string](t, rec)
	assert.NotEmpty(t, saved["id"])
	assert.Equal(t, "2023-06-01T09:00:00.000Z", saved["createdAt"])
	assert.Equal(t, "10:00 AM", saved["time"])

	rec = f.do(t, http.MethodGet, "/api/appointments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]string](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, saved["id"], list[0]["id"])

	rec = f.do(t, http.MethodGet, "/api/appointments.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Appointment with Dr. John Smith")
	assert.Contains(t, rec.Body.String(), saved["id"]+"@docappt")
}

func TestBookRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/appointments", `{"doctor":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/appointments", `{"doctor":"Dr. John Smith"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing fields: date, time", decode[map[string]string](t, rec)["error"])

	_, ok, err := f.store.Get(context.Background(), booking.StoreKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppointmentsCorruptLedger(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.Set(context.Background(), booking.StoreKey, []byte(`{"not":"a list"}`)))

	rec := f.do(t, http.MethodGet, "/api/appointments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/appointments.ics", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScheduleRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		src := sourceFunc(func(context.Context) (schedule.FetchResult, error) {
			return schedule.FetchResult{Entries: entries[:1]}, nil
		})
		f := newFixture(t, src)

		rec := f.do(t, http.MethodPost, "/api/schedules/refresh", "")
		require.Equal(t, http.StatusOK, rec.Code)
		st := decode[schedule.Status](t, rec)
		assert.Equal(t, 1, st.Entries)
		assert.Equal(t, 1, st.Doctors)
		assert.Empty(t, st.Error)
	})

	t.Run("failure keeps current list", func(t *testing.T) {
		src := sourceFunc(func(context.Context) (schedule.FetchResult, error) {
			return schedule.FetchResult{}, errors.New("network response was not ok")
		})
		f := newFixture(t, src)

		rec := f.do(t, http.MethodPost, "/api/schedules/refresh", "")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		st := decode[schedule.Status](t, rec)
		assert.Equal(t, "network response was not ok", st.Error)
		assert.Equal(t, 2, st.Doctors)

		rec = f.do(t, http.MethodGet, "/api/schedules/status", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[schedule.Status](t, rec).Loading)
	})

	t.Run("disabled without source", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/api/schedules/refresh", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodDelete, "/api/appointments", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decode[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodPut, "/api/doctors/Dr.%20John%20Smith", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[map[string]string](t, rec)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	f.do(t, http.MethodGet, "/health", "")
	f.do(t, http.MethodPost, "/api/appointments", `{"doctor":"Dr. Jane Doe","date":"2023-06-02","time":"1:00 PM"}`)
	f.do(t, http.MethodGet, "/api/nothing-here", "")
	f.do(t, http.MethodDelete, "/api/appointments", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `docappt_http_requests_total{code="200",method="GET",route="/health"} 1`)
	assert.Contains(t, body, `docappt_http_requests_total{code="201",method="POST",route="/api/appointments"} 1`)
	assert.Contains(t, body, "docappt_bookings_total 1")
	assert.Contains(t, body, `docappt_http_requests_total{code="404",method="GET",route="unmatched"} 1`)
	assert.Contains(t, body, `docappt_http_requests_total{code="405",method="DELETE",route="unmatched"} 1`)
}
