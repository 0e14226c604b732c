package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docappt/internal/availability"
	"docappt/internal/clock"
	"docappt/internal/ics"
	appLog "docappt/internal/log"
	"docappt/internal/model"
	"docappt/internal/schedule"
	"docappt/internal/web"
)

// withApp builds the app for one command invocation and releases it after.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh schedules on the configured cron",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				cfg := a.cfg
				if listen != "" {
					cfg.Listen = listen
				}
				appLog.Info("docappt starting",
					"version", version,
					"listen", cfg.Listen,
					"store_backend", cfg.Store.Backend,
					"refresh", cfg.RefreshCron,
					"metrics", cfg.Metrics.Enabled,
				)

				// A failed initial load leaves the doctor list empty; the
				// refresher or POST /api/schedules/refresh can recover it.
				if err := a.loadSchedules(ctx); err == nil {
					st := a.schedules.Status()
					appLog.Info("schedules loaded", "entries", st.Entries, "doctors", st.Doctors)
				}

				if cfg.RefreshCron != "" {
					r, err := schedule.NewRefresher(a.schedules, a.source, cfg.RefreshCron, fetchTimeout(cfg))
					if err != nil {
						return err
					}
					r.Start(ctx)
				}

				srvOpts := web.Options{
					Schedules:   a.schedules,
					Source:      a.source,
					Ledger:      a.ledger,
					HorizonDays: cfg.HorizonDays,
				}
				if cfg.Metrics.Enabled {
					srvOpts.Metrics = a.metrics
					srvOpts.MetricsPath = cfg.Metrics.Path
				}
				err := web.NewServer(srvOpts).Run(ctx, cfg.Listen)
				appLog.Info("docappt exiting")
				return err
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func newDoctorsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctors",
		Short: "List doctors and their weekly availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.loadSchedules(ctx); err != nil {
					return err
				}
				printDoctors(cmd.OutOrStdout(), a.schedules.Doctors())
				return nil
			})
		},
	}
}

func printDoctors(w io.Writer, doctors []model.Doctor) {
	if len(doctors) == 0 {
		fmt.Fprintln(w, "No doctors available")
		return
	}
	for _, d := range doctors {
		fmt.Fprintf(w, "%s (%s)\n", d.Name, d.Timezone)
		for _, s := range d.Schedules {
			fmt.Fprintf(w, "  %-10s %s - %s\n", s.DayOfWeek, s.AvailableAt, s.AvailableUntil)
		}
	}
}

// requireDoctor loads schedules and resolves name.
func requireDoctor(ctx context.Context, a *app, name string) (model.Doctor, error) {
	if err := a.loadSchedules(ctx); err != nil {
		return model.Doctor{}, err
	}
	doc, ok := a.schedules.DoctorByName(name)
	if !ok {
		return model.Doctor{}, fmt.Errorf("doctor %q not found", name)
	}
	return doc, nil
}

func newDatesCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "dates <doctor>",
		Short: "List bookable dates for a doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				doc, err := requireDoctor(ctx, a, args[0])
				if err != nil {
					return err
				}
				if days <= 0 {
					days = a.cfg.HorizonDays
				}
				out := cmd.OutOrStdout()
				for _, d := range availability.AvailableDates(doc, time.Now(), days) {
					fmt.Fprintf(out, "%s  %s  %s\n", d.Value, d.Day, d.Date)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Number of days to look ahead (default from config)")
	return cmd
}

func newSlotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slots <doctor> <yyyy-mm-dd>",
		Short: "List 30-minute slots for a doctor on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				doc, err := requireDoctor(ctx, a, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				slots := availability.AvailableTimeSlots(doc, args[1])
				if len(slots) == 0 {
					fmt.Fprintf(out, "No slots on %s\n", clock.FormatHumanDate(args[1]))
					return nil
				}
				for _, s := range slots {
					fmt.Fprintln(out, s)
				}
				return nil
			})
		},
	}
}

func newBookCmd(opts *rootOptions) *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:   "book <doctor> <yyyy-mm-dd> <time>",
		Short: "Book an appointment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				req := model.BookingRequest{
					Doctor:   args[0],
					Date:     args[1],
					Time:     args[2],
					Timezone: timezone,
				}
				saved, err := a.ledger.Book(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Booked %s with %s on %s at %s\n",
					saved.ID, saved.Doctor, clock.FormatHumanDate(saved.Date), saved.Time)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&timezone, "timezone", "", "Doctor timezone recorded with the booking")
	return cmd
}

func newAppointmentsCmd(opts *rootOptions) *cobra.Command {
	var asICS bool

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Print booked appointments as JSON or iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				list, err := a.ledger.Appointments(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asICS {
					cal, skipped := ics.ExportAppointments(list, nil)
					for _, e := range skipped {
						appLog.Info("appointment not exported", "reason", e.Error())
					}
					return ics.Write(out, cal)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			})
		},
	}
	cmd.Flags().BoolVar(&asICS, "ics", false, "Write an iCalendar file instead of JSON")
	return cmd
}
