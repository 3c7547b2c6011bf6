package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Queue drivers.
const (
	QueueDriverLog    = "log"
	QueueDriverKafka  = "kafka"
	QueueDriverMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Verbose  bool
	Server   ServerConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Log      LogConfig
}

// ServerConfig holds webhook listener settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Path string
}

// QueueConfig selects where side-effect jobs are sent.
type QueueConfig struct {
	Driver string
	Kafka  KafkaConfig
}

// KafkaConfig holds broker settings for the kafka driver.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Async returns from Enqueue before the brokers acknowledge the job.
	Async   bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from Viper and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Server: ServerConfig{
			Addr:         viper.GetString("server.addr"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
			MaxBodyBytes: viper.GetInt64("server.max_body_bytes"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Queue: QueueConfig{
			Driver: viper.GetString("queue.driver"),
			Kafka: KafkaConfig{
				Brokers: splitList(viper.GetStringSlice("queue.kafka.brokers")),
				Topic:   viper.GetString("queue.kafka.topic"),
				Async:   viper.GetBool("queue.kafka.async"),
			},
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 64 << 10
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "webhooks.db"
	}
	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = QueueDriverLog
	}
	if cfg.Queue.Kafka.Topic == "" {
		cfg.Queue.Kafka.Topic = "order-notifications"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Queue.Driver {
	case QueueDriverLog, QueueDriverMemory:
	case QueueDriverKafka:
		if len(c.Queue.Kafka.Brokers) == 0 {
			return fmt.Errorf("queue.kafka.brokers is required for the kafka driver")
		}
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	return nil
}

// splitList flattens comma separated items, so a list set through an
// environment variable as "a:9092,b:9092" yields two entries.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
