// Command subledger serves the subscription ledger HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/subledger/pkg/api"
	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/billing/prommetrics"
	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/config"
	"github.com/dmitrymomot/subledger/pkg/httpserver"
	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/payment"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/stats"
	"github.com/dmitrymomot/subledger/pkg/subscription"
	"github.com/dmitrymomot/subledger/pkg/user"
)

func main() {
	var cfg AppConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithConfig(cfg.Log),
	)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("subledger stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg AppConfig, log *slog.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, time.Minute)
	store, err := openBackend(connectCtx, cfg.StoreDriver, log)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			log.Error("failed to close store", logger.Error(err))
		}
	}()
	log.Info("store opened", slog.String("driver", cfg.StoreDriver))

	svc, err := wire(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	if cfg.PlansSeedFile != "" {
		plans, err := catalog.LoadSeedFile(cfg.PlansSeedFile)
		if err != nil {
			return err
		}
		n, err := svc.plans.Seed(ctx, plans)
		if err != nil {
			return err
		}
		log.Info("plans seeded", slog.Int("created", n), slog.String("file", cfg.PlansSeedFile))
	}

	report, err := svc.billing.Recover(ctx)
	if err != nil {
		return err
	}
	if report != (billing.RecoveryReport{}) {
		log.Warn("interrupted settlements recovered",
			slog.Int("applied", report.Applied),
			slog.Int("abandoned", report.Abandoned),
			slog.Int("failed", report.Failed),
		)
	}

	deps := api.Deps{
		Users:         svc.users,
		Plans:         svc.plans,
		Subscriptions: svc.subs,
		Ledger:        svc.ledger,
		Billing:       svc.billing,
		Stats:         svc.stats,
		WebhookSecret: cfg.WebhookSecret,
		Checks:        []httpserver.Check{store.check},
	}
	if svc.registry != nil {
		deps.Metrics = promhttp.HandlerFor(svc.registry, promhttp.HandlerOpts{})
	}
	if cfg.WebhookSecret == "" {
		log.Warn("WEBHOOK_SECRET is empty, webhook signatures are not verified")
	}

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, api.NewRouter(deps, api.WithLogger(log)))
}

type services struct {
	users    *user.Service
	plans    *catalog.Service
	subs     *subscription.Service
	ledger   *ledger.Service
	billing  *billing.Service
	stats    *stats.Service
	registry *prometheus.Registry
}

// wire opens every collection on the shared backend and connects the
// services. Plan and user deletes consult the subscription service.
func wire(ctx context.Context, cfg AppConfig, store recordstore.Backend, log *slog.Logger) (services, error) {
	storeOpts := []recordstore.Option{recordstore.WithLogger(log)}

	userStore, err := recordstore.Open(ctx, store, user.Schema, storeOpts...)
	if err != nil {
		return services{}, err
	}
	planStore, err := recordstore.Open(ctx, store, catalog.Schema, storeOpts...)
	if err != nil {
		return services{}, err
	}
	subStore, err := recordstore.Open(ctx, store, subscription.Schema, storeOpts...)
	if err != nil {
		return services{}, err
	}
	txStore, err := recordstore.Open(ctx, store, ledger.Schema, storeOpts...)
	if err != nil {
		return services{}, err
	}
	intentStore, err := recordstore.Open(ctx, store, billing.IntentSchema, storeOpts...)
	if err != nil {
		return services{}, err
	}

	rates, err := money.ParseRates(cfg.BaseCurrency, cfg.DisplayRates)
	if err != nil {
		return services{}, err
	}
	attempter, err := payment.NewRandom(cfg.SuccessRate, cfg.SimulatorSeed)
	if err != nil {
		return services{}, err
	}

	var s services
	s.users = user.NewService(userStore,
		user.WithLogger(log),
		user.WithReferenceChecker(func(ctx context.Context, id string) (bool, error) {
			return s.subs.HasSubscriptions(ctx, id)
		}),
	)
	s.plans = catalog.NewService(planStore,
		catalog.WithLogger(log),
		catalog.WithDefaultCurrency(rates.Base()),
		catalog.WithCurrencies(rates.Currencies()...),
		catalog.WithReferenceChecker(func(ctx context.Context, id string) (bool, error) {
			return s.subs.IsPlanReferenced(ctx, id)
		}),
		catalog.WithLiveReferenceChecker(func(ctx context.Context, id string) (bool, error) {
			return s.subs.IsPlanInUse(ctx, id)
		}),
	)
	s.subs = subscription.NewService(subStore, s.plans,
		subscription.WithLogger(log),
		subscription.WithUsers(s.users),
	)
	s.ledger = ledger.NewService(txStore,
		ledger.WithLogger(log),
		ledger.WithDefaultCurrency(rates.Base()),
		ledger.WithCurrencies(rates.Currencies()...),
	)

	billingOpts := []billing.Option{
		billing.WithLogger(log),
		billing.WithAttempter(attempter),
	}
	if cfg.MetricsEnabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		billingOpts = append(billingOpts, billing.WithMetrics(prommetrics.NewMetrics(s.registry, "subledger")))
	}
	s.billing = billing.NewService(s.subs, s.ledger, billing.NewJournal(intentStore, nil), billingOpts...)
	s.stats = stats.NewService(s.ledger, s.subs, s.plans,
		stats.WithLogger(log),
		stats.WithRates(rates),
	)
	return s, nil
}
