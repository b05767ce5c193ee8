package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trackfleet/trackfleet/config"
	"github.com/trackfleet/trackfleet/internal/broker/kafka"
	"github.com/trackfleet/trackfleet/internal/broker/notify"
	"github.com/trackfleet/trackfleet/internal/cache/rediscache"
	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
	"github.com/trackfleet/trackfleet/internal/services/shipments"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

type shipAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     shipAPIOpts
	svc      *shipments.Service
	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	httpAddr := cfg.TrackFleet.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.DeliveredTopicName
	if topic == "" {
		topic = "shipments.delivered"
	}
	cacheTTL := time.Duration(cfg.TrackFleet.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	registry := registryFromConfig(cfg)
	client := carrier.NewClient(time.Duration(cfg.TrackFleet.CarrierTimeoutSeconds) * time.Second)
	policy := refresher.NewPolicy(
		time.Duration(cfg.TrackFleet.RefreshTTLSeconds)*time.Second,
		time.Duration(cfg.TrackFleet.ProblemRefreshTTLSeconds)*time.Second,
	)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	refr := refresher.New(st, registry, client, policy).
		WithPacing(time.Duration(cfg.TrackFleet.FleetPacingMillis) * time.Millisecond).
		WithNotificationHook(notify.DeliveredHook(producer, topic)).
		WithRunLog(st)
	if cfg.TrackFleet.DefaultUTCOffset != "" {
		zone, err := config.ParseUTCOffset(cfg.TrackFleet.DefaultUTCOffset)
		if err != nil {
			panic(fmt.Sprintf("bad default_utc_offset %q: %v", cfg.TrackFleet.DefaultUTCOffset, err))
		}
		refr = refr.WithZone(zone)
	}

	svc := shipments.New(st, registry, refr, policy).WithCache(rc, cacheTTL).WithRuns(st)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &shipAPIApp{
		ctx:      ctx,
		cancel:   cancel,
		opts:     shipAPIOpts{httpAddr: httpAddr},
		svc:      svc,
		producer: producer,
		closeDB:  st.Close,
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

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipments.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipments.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *shipAPIApp) Run() error {
	return runShipAPI(a.ctx, a.opts, a.svc)
}
