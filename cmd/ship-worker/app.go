package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackfleet/trackfleet/config"
	"github.com/trackfleet/trackfleet/internal/broker/kafka"
	"github.com/trackfleet/trackfleet/internal/broker/notify"
	"github.com/trackfleet/trackfleet/internal/cache/rediscache"
	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

// workerStore is what the refresher needs from postgres: shipment access
// plus the fleet run audit log.
type workerStore interface {
	refresher.Store
	refresher.RunLog
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (store workerStore, closeFn func(), err error)
	newProducer    func(cfg *config.Config) notify.Producer
	newRateLimiter func(cfg *config.Config) refresher.RateLimiter
	newFetcher     func(cfg *config.Config) refresher.Fetcher
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgshipments.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) notify.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newFetcher: func(cfg *config.Config) refresher.Fetcher {
			return carrier.NewClient(time.Duration(cfg.TrackFleet.CarrierTimeoutSeconds) * time.Second)
		},
	}
}

func registryFromConfig(cfg *config.Config) *providers.Registry {
	ps := make([]providers.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		ps = append(ps, providers.Provider{
			Name:         p.Name,
			TrackingURL:  p.TrackingURL,
			Endpoint:     p.Endpoint,
			Method:       p.Method,
			Headers:      p.Headers,
			BodyTemplate: p.BodyTemplate,
			InsecureTLS:  p.InsecureTLS,
			HistoryOrder: p.HistoryOrder,
		})
	}
	return providers.NewRegistry(ps)
}

func RunShipWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.DeliveredTopicName
	if topic == "" {
		topic = "shipments.delivered"
	}

	interval := time.Duration(cfg.TrackFleet.WorkerIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	rlPerMin := int64(cfg.TrackFleet.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	store, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	fetcher := f.newFetcher(cfg)

	policy := refresher.NewPolicy(
		time.Duration(cfg.TrackFleet.RefreshTTLSeconds)*time.Second,
		time.Duration(cfg.TrackFleet.ProblemRefreshTTLSeconds)*time.Second,
	)

	refr := refresher.New(store, registryFromConfig(cfg), fetcher, policy).
		WithPacing(time.Duration(cfg.TrackFleet.FleetPacingMillis) * time.Millisecond).
		WithNotificationHook(notify.DeliveredHook(producer, topic)).
		WithRunLog(store).
		WithRateLimiter(rl, rlPerMin)
	if cfg.TrackFleet.DefaultUTCOffset != "" {
		zone, err := config.ParseUTCOffset(cfg.TrackFleet.DefaultUTCOffset)
		if err != nil {
			return fmt.Errorf("bad default_utc_offset %q: %w", cfg.TrackFleet.DefaultUTCOffset, err)
		}
		refr = refr.WithZone(zone)
	}

	w := refresher.NewWorker(refr, interval)

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.TrackFleet.WorkerHTTPAddr,
			worker:   w,
			cfg:      cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server", "error", err.Error())
		}
	}()

	return w.Run(ctx)
}
