package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackfleet/config"
	"github.com/trackfleet/trackfleet/internal/broker/notify"
	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

type fakeRepo struct{}

func (r *fakeRepo) FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	return nil, nil
}
func (r *fakeRepo) FindActive(ctx context.Context) ([]*models.Shipment, error) {
	return []*models.Shipment{}, nil
}
func (r *fakeRepo) FindAll(ctx context.Context) ([]*models.Shipment, error) {
	return []*models.Shipment{}, nil
}
func (r *fakeRepo) ApplyRefresh(ctx context.Context, upd pgshipments.RefreshUpdate) error {
	return nil
}
func (r *fakeRepo) RecordRun(ctx context.Context, run pgshipments.RefreshRun) error {
	return nil
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

type noopFetcher struct{}

func (f noopFetcher) Fetch(ctx context.Context, prov providers.Provider, trackingID string) (carrier.Result, error) {
	return carrier.Result{}, carrier.ErrNetwork
}

func TestDefaultWorkerFactories_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
	require.NotNil(t, f.newFetcher(cfg))
}

func TestRunShipWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			return &fakeRepo{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) notify.Producer {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter {
			return nil
		},
		newFetcher: func(cfg *config.Config) refresher.Fetcher {
			return noopFetcher{}
		},
	}

	cfg := &config.Config{
		Kafka: config.KafkaConfig{DeliveredTopicName: "t"},
		TrackFleet: config.TrackFleetConfig{
			WorkerIntervalSeconds: 1,
			WorkerHTTPAddr:        "127.0.0.1:0",
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunShipWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestRunShipWorker_BadUTCOffset(t *testing.T) {
	f := workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			return &fakeRepo{}, nil, nil
		},
		newProducer:    func(cfg *config.Config) notify.Producer { return noopProducer{} },
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter { return nil },
		newFetcher:     func(cfg *config.Config) refresher.Fetcher { return noopFetcher{} },
	}

	cfg := &config.Config{
		TrackFleet: config.TrackFleetConfig{DefaultUTCOffset: "nonsense"},
	}

	err := RunShipWorker(context.Background(), cfg, f)
	require.Error(t, err)
	require.Contains(t, err.Error(), "default_utc_offset")
}
