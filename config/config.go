package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	TrackFleet TrackFleetConfig `yaml:"trackfleet"`
	Providers  []ProviderConfig `yaml:"providers"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	DeliveredTopicName string `yaml:"delivered_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TrackFleetConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	CurrentStatusTTLSeconds  int `yaml:"current_status_ttl_seconds"`
	RefreshTTLSeconds        int `yaml:"refresh_ttl_seconds"`
	ProblemRefreshTTLSeconds int `yaml:"problem_refresh_ttl_seconds"`

	FleetPacingMillis     int `yaml:"fleet_pacing_ms"`
	CarrierTimeoutSeconds int `yaml:"carrier_timeout_seconds"`

	// DefaultUTCOffset ("+05:30") resolves carrier timestamps that carry no
	// zone indicator.
	DefaultUTCOffset string `yaml:"default_utc_offset"`

	WorkerIntervalSeconds    int `yaml:"worker_interval_seconds"`
	WorkerRateLimitPerMinute int `yaml:"worker_rate_limit_per_minute"`
}

// ProviderConfig is one carrier's externally supplied API configuration.
type ProviderConfig struct {
	Name         string            `yaml:"name"`
	TrackingURL  string            `yaml:"tracking_url"`
	Endpoint     string            `yaml:"endpoint"`
	Method       string            `yaml:"method"`
	Headers      map[string]string `yaml:"headers"`
	BodyTemplate string            `yaml:"body_template"`
	InsecureTLS  bool              `yaml:"insecure_tls"`
	HistoryOrder string            `yaml:"history_order"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// ParseUTCOffset turns an "+05:30" style offset into a fixed zone.
func ParseUTCOffset(offset string) (*time.Location, error) {
	if offset == "" {
		return nil, fmt.Errorf("empty utc offset")
	}

	sign := 1
	switch offset[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("utc offset %q must start with + or -", offset)
	}

	var hh, mm int
	if _, err := fmt.Sscanf(offset[1:], "%02d:%02d", &hh, &mm); err != nil {
		return nil, fmt.Errorf("utc offset %q is not HH:MM: %w", offset, err)
	}
	if hh > 14 || mm > 59 {
		return nil, fmt.Errorf("utc offset %q is out of range", offset)
	}

	secs := sign * (hh*3600 + mm*60)
	return time.FixedZone("UTC"+offset, secs), nil
}
