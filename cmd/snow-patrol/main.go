package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/snow-patrol/internal/api/http"
	"github.com/i474232898/snow-patrol/internal/config"
	"github.com/i474232898/snow-patrol/internal/logger"
	"github.com/i474232898/snow-patrol/internal/metrics"
	"github.com/i474232898/snow-patrol/internal/notify"
	"github.com/i474232898/snow-patrol/internal/patrol"
	"github.com/i474232898/snow-patrol/internal/scheduler"
	"github.com/i474232898/snow-patrol/internal/store"
	"github.com/i474232898/snow-patrol/internal/weather"
	"github.com/i474232898/snow-patrol/internal/weather/providers"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-v|--verbose] [config_path]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() > 1 {
		pflag.Usage()
		return 1
	}

	cfg, err := config.Load(pflag.Arg(0))
	if err != nil {
		bootstrap, cleanup := logger.New(logger.Options{})
		bootstrap.Errorw("failed to load config", "error", err)
		cleanup()
		return 1
	}

	log, cleanup := logger.New(logger.Options{Verbose: *verbose, File: cfg.LogFile})
	defer cleanup()
	log.Debugw("running under", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Errorw("snow patrol failed", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.AppConfig, log *zap.SugaredLogger) error {
	// Shared HTTP client for outbound provider and SMS calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	place := cfg.Place()
	recipient := patrol.Recipient{Name: cfg.Name, Phone: cfg.PhoneNumber}

	provider, err := providers.New(cfg.ForecastProvider, httpClient, cfg.ForecastAPIKey)
	if err != nil {
		return err
	}

	m := metrics.New()
	history := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	gateway := notify.NewTextbelt(httpClient, cfg.NotificationAPIKey, cfg.NotificationTestMode)
	policy := notify.NewPolicy()

	fetcher := weather.NewFetcher(provider, place, weather.DefaultRetryPolicy(), log,
		weather.WithFailureHook(m.ForecastFailure),
	)
	p := patrol.New(place, recipient, cfg.Zone, fetcher, gateway, policy, history, m, log)

	// Optional dry-spell reminder.
	sched := scheduler.New(cfg.Zone, log)
	if cfg.DrySpellReminder != "" {
		reminder := patrol.NewDrySpellReminder(history, gateway, policy, recipient, cfg.DrySpellWindow, m, log, nil)
		if err := sched.AddCron("dry-spell-reminder", cfg.DrySpellReminder, func(ctx context.Context) {
			reminder.Check(ctx)
		}); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// Optional status server.
	if cfg.StatusAddr != "" {
		app := httpapi.NewApp(log)
		httpapi.RegisterRoutes(app, place, history, m.Handler())

		go func() {
			log.Infow("status server listening", "addr", cfg.StatusAddr)
			if err := app.Listen(cfg.StatusAddr); err != nil {
				log.Warnw("status server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				log.Warnw("error during status server shutdown", "error", err)
			}
		}()
	}

	return p.Run(ctx)
}
