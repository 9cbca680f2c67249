// Package config loads xorpcored's configuration: a YAML base overlaid
// with XORPCORE_*-prefixed environment variables, the way the teacher's
// rib-ingester loads its own settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Service  ServiceConfig            `koanf:"service"`
	Postgres PostgresConfig           `koanf:"postgres"`
	Kafka    KafkaConfig              `koanf:"kafka"`
	RIP      RIPConfig                `koanf:"rip"`
	Ports    map[string]PortConfig    `koanf:"ports"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"client_id"`
	Topic    string   `koanf:"topic"`
}

// RIPConfig holds the globals that apply to every Port unless overridden
// (spec §6 "Configuration options recognised by the core").
type RIPConfig struct {
	UpdateIntervalSeconds    int `koanf:"update_interval_seconds"`
	ExpiryTimeoutSeconds     int `koanf:"expiry_timeout_seconds"`
	DeletionTimeoutSeconds   int `koanf:"deletion_timeout_seconds"`
	TriggeredMinSeconds      int `koanf:"triggered_min_seconds"`
	TriggeredMaxSeconds      int `koanf:"triggered_max_seconds"`
	TableRequestPeriodSeconds int `koanf:"table_request_period_seconds"`
}

// PortConfig is one interface's RIP settings, keyed by interface name in
// the Ports map.
type PortConfig struct {
	Enabled              bool   `koanf:"enabled"`
	Cost                 int    `koanf:"cost"`
	Horizon              string `koanf:"horizon"` // "none", "split", "split-poison-reverse"
	Advertise            bool   `koanf:"advertise"`
	AdvertiseDefault     bool   `koanf:"advertise_default"`
	AcceptDefault        bool   `koanf:"accept_default"`
	Passive              bool   `koanf:"passive"`
	AcceptNonRipRequests bool   `koanf:"accept_non_rip_requests"`
	AuthType             string `koanf:"auth_type"` // "none", "plaintext", "md5"
	AuthKey              string `koanf:"auth_key"`
}

// Load reads path (if non-empty) as YAML, then overlays XORPCORE_*
// environment variables (XORPCORE_POSTGRES__DSN -> postgres.dsn).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("XORPCORE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "XORPCORE_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "xorpcored-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Kafka: KafkaConfig{
			ClientID: "xorpcored",
			Topic:    "route-churn",
		},
		RIP: RIPConfig{
			UpdateIntervalSeconds:     30,
			ExpiryTimeoutSeconds:      180,
			DeletionTimeoutSeconds:    120,
			TriggeredMinSeconds:       1,
			TriggeredMaxSeconds:       5,
			TableRequestPeriodSeconds: 0,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.RIP.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("config: rip.update_interval_seconds must be > 0 (got %d)", c.RIP.UpdateIntervalSeconds)
	}
	if c.RIP.ExpiryTimeoutSeconds <= 0 {
		return fmt.Errorf("config: rip.expiry_timeout_seconds must be > 0 (got %d)", c.RIP.ExpiryTimeoutSeconds)
	}
	if c.RIP.DeletionTimeoutSeconds <= 0 {
		return fmt.Errorf("config: rip.deletion_timeout_seconds must be > 0 (got %d)", c.RIP.DeletionTimeoutSeconds)
	}
	for name, pc := range c.Ports {
		switch pc.Horizon {
		case "", "none", "split", "split-poison-reverse":
		default:
			return fmt.Errorf("config: ports.%s.horizon %q is not one of none/split/split-poison-reverse", name, pc.Horizon)
		}
		switch pc.AuthType {
		case "", "none", "plaintext", "md5":
		default:
			return fmt.Errorf("config: ports.%s.auth_type %q is not one of none/plaintext/md5", name, pc.AuthType)
		}
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	return nil
}

// UpdateInterval is the per-Port UnsolicitedResponse max interval; the
// min is 7/8 of it (26.25 s for the 30 s default).
func (c *RIPConfig) UpdateInterval() (min, max time.Duration) {
	max = time.Duration(c.UpdateIntervalSeconds) * time.Second
	min = max * 7 / 8
	return min, max
}
