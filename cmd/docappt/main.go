package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docappt/internal/booking"
	"docappt/internal/config"
	"docappt/internal/kv"
	appLog "docappt/internal/log"
	"docappt/internal/metrics"
	"docappt/internal/schedule"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}

// rootOptions holds flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "docappt",
		Short:         "Doctor availability and appointment booking",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", opts.configPath, err)
			}
			opts.cfg = cfg
			appLog.Configure(cfg.IsProduction(), appLog.ParseLevel(cfg.LogLevel))
			appLog.Debug("effective config",
				"config_path", opts.configPath,
				"schedule_url", cfg.ScheduleURL,
				"store_backend", cfg.Store.Backend,
				"horizon_days", cfg.HorizonDays,
			)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")

	root.AddCommand(
		newServeCmd(opts),
		newDoctorsCmd(opts),
		newDatesCmd(opts),
		newSlotsCmd(opts),
		newBookCmd(opts),
		newAppointmentsCmd(opts),
	)
	return root
}

// app bundles the long-lived components built from a Config.
type app struct {
	cfg        *config.Config
	schedules  *schedule.Store
	source     schedule.Source
	ledger     *booking.Ledger
	metrics    *metrics.Metrics
	closeStore func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	m := metrics.New("docappt")

	store, closeStore, err := kv.Open(ctx, kv.Options{
		Backend:       cfg.Store.Backend,
		Dir:           cfg.Store.Dir,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisPrefix:   cfg.Store.RedisPrefix,
		DialTimeout:   5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	var src schedule.Source = schedule.NewFetcher(cfg.ScheduleURL, fetchTimeout(cfg))
	if cfg.Metrics.Enabled {
		src = m.InstrumentSource(src)
	}

	return &app{
		cfg:        cfg,
		schedules:  schedule.NewStore(),
		source:     src,
		ledger:     booking.NewLedger(store, booking.WithCounter(m.BookingsTotal)),
		metrics:    m,
		closeStore: closeStore,
	}, nil
}

func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		appLog.Error("close store", err)
	}
}

// loadSchedules performs one bounded refresh of the schedule store.
func (a *app) loadSchedules(ctx context.Context) error {
	if t := fetchTimeout(a.cfg); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return a.schedules.Refresh(ctx, a.source)
}

func fetchTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.FetchTimeoutSeconds) * time.Second
}
