package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackfleet/trackfleet/config"
	"github.com/trackfleet/trackfleet/internal/broker/kafka"
	"github.com/trackfleet/trackfleet/internal/broker/messages"
)

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runShipNotifier(ctx context.Context, consumer kafkaConsumer, notify func(messages.ShipmentDelivered)) error {
	return consumer.Consume(ctx, func(_key, value []byte) error {
		var m messages.ShipmentDelivered
		if err := json.Unmarshal(value, &m); err != nil {
			return err
		}
		notify(m)
		return nil
	})
}

func logDelivered(m messages.ShipmentDelivered) {
	slog.Info("shipment delivered",
		"tracking_id", m.TrackingID,
		"provider", m.Provider,
		"location", m.Location,
		"delivered_at", m.DeliveredAt,
	)
}

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	topic := cfg.Kafka.DeliveredTopicName
	if topic == "" {
		topic = "shipments.delivered"
	}
	consumerGroup := cfg.TrackFleet.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ship-notifier"
	}

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("kafka consumer started", "topic", topic, "group", consumerGroup)
	if err := runShipNotifier(ctx, consumer, logDelivered); err != nil && err != context.Canceled {
		panic(err)
	}
}
