package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"docappt/internal/availability"
	"docappt/internal/booking"
	"docappt/internal/ics"
	appLog "docappt/internal/log"
	"docappt/internal/metrics"
	"docappt/internal/model"
	"docappt/internal/schedule"
)

// Server exposes doctors, availability and bookings over HTTP.
type Server struct {
	schedules *schedule.Store
	source    schedule.Source
	ledger    *booking.Ledger
	metrics   *metrics.Metrics

	horizonDays int
	metricsPath string
	now         func() time.Time

	router *mux.Router
}

// Options configures a Server. Schedules and Ledger are required.
type Options struct {
	Schedules *schedule.Store
	// Source backs POST /api/schedules/refresh. Nil disables the route.
	Source schedule.Source
	Ledger *booking.Ledger
	// Metrics enables request instrumentation and the metrics endpoint.
	Metrics     *metrics.Metrics
	MetricsPath string

	HorizonDays int
	// Now is the reference clock for date lists; time.Now when nil.
	Now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	s := &Server{
		schedules:   opts.Schedules,
		source:      opts.Source,
		ledger:      opts.Ledger,
		metrics:     opts.Metrics,
		horizonDays: opts.HorizonDays,
		metricsPath: opts.MetricsPath,
		now:         opts.Now,
		router:      mux.NewRouter(),
	}
	if s.horizonDays <= 0 {
		s.horizonDays = availability.DefaultHorizonDays
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.router)
	return handlers.CombinedLoggingHandler(appLog.Writer(), h)
}

// Run serves on listen until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router

	notFound := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))
	notAllowed := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}))

	if s.metrics != nil {
		// Router middleware only wraps matched routes.
		r.Use(s.metrics.Middleware)
		notFound = s.metrics.Middleware(notFound)
		notAllowed = s.metrics.Middleware(notAllowed)
		r.Handle(s.metricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/doctors", s.handleDoctors).Methods(http.MethodGet)
	r.HandleFunc("/api/doctors/{name}", s.handleDoctor).Methods(http.MethodGet)
	r.HandleFunc("/api/doctors/{name}/dates", s.handleDates).Methods(http.MethodGet)
	r.HandleFunc("/api/doctors/{name}/slots", s.handleSlots).Methods(http.MethodGet)

	r.HandleFunc("/api/appointments.ics", s.handleAppointmentsICS).Methods(http.MethodGet)
	r.HandleFunc("/api/appointments", s.handleAppointments).Methods(http.MethodGet)
	r.HandleFunc("/api/appointments", s.handleBook).Methods(http.MethodPost)

	r.HandleFunc("/api/schedules/status", s.handleScheduleStatus).Methods(http.MethodGet)
	if s.source != nil {
		r.HandleFunc("/api/schedules/refresh", s.handleScheduleRefresh).Methods(http.MethodPost)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleDoctors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.schedules.Doctors())
}

// lookupDoctor writes a 404 and reports false when the path names no doctor.
func (s *Server) lookupDoctor(w http.ResponseWriter, r *http.Request) (model.Doctor, bool) {
	name := mux.Vars(r)["name"]
	doc, ok := s.schedules.DoctorByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "doctor not found")
		return model.Doctor{}, false
	}
	return doc, true
}

func (s *Server) handleDoctor(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDoctor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDates lists bookable dates.
//
// GET /api/doctors/{name}/dates?days=14 (capped at availability.MaxHorizonDays)
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDoctor(w, r)
	if !ok {
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), s.horizonDays)
	if days <= 0 {
		days = s.horizonDays
	}
	if days > availability.MaxHorizonDays {
		days = availability.MaxHorizonDays
	}
	writeJSON(w, http.StatusOK, availability.AvailableDates(doc, s.now(), days))
}

// handleSlots lists slot labels for one date. An unusable date is not an
// error; the list is simply empty.
//
// GET /api/doctors/{name}/slots?date=2023-06-05
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDoctor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, availability.AvailableTimeSlots(doc, r.URL.Query().Get("date")))
}

func (s *Server) handleAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Appointments(r.Context())
	if err != nil {
		appLog.Error("api appointments: read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read appointments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAppointmentsICS(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Appointments(r.Context())
	if err != nil {
		appLog.Error("api appointments.ics: read failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read appointments")
		return
	}

	cal, skipped := ics.ExportAppointments(list, nil)
	if len(skipped) > 0 {
		appLog.Info("api appointments.ics: skipped records", "count", len(skipped))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.ics"`)
	w.WriteHeader(http.StatusOK)
	if err := ics.Write(w, cal); err != nil {
		appLog.Error("api appointments.ics: write failed", err)
	}
}

// handleBook appends a booking.
//
// POST /api/appointments {"doctor":..., "date":"2023-06-05", "time":"10:00 AM", "timezone":...}
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if missing := missingFields(req); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing fields: "+strings.Join(missing, ", "))
		return
	}

	saved, err := s.ledger.Book(r.Context(), req)
	if err != nil {
		appLog.Error("api book: failed", err, "doctor", req.Doctor)
		writeError(w, http.StatusInternalServerError, "failed to book appointment")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func missingFields(req model.BookingRequest) []string {
	var missing []string
	if strings.TrimSpace(req.Doctor) == "" {
		missing = append(missing, "doctor")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(req.Time) == "" {
		missing = append(missing, "time")
	}
	return missing
}

func (s *Server) handleScheduleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.schedules.Status())
}

func (s *Server) handleScheduleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Refresh(r.Context(), s.source); err != nil {
		writeJSON(w, http.StatusBadGateway, s.schedules.Status())
		return
	}
	writeJSON(w, http.StatusOK, s.schedules.Status())
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
