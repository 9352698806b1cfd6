package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	StockBox StockBoxConfig `yaml:"stockbox"`
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
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	StockUpdatedTopicName string `yaml:"stock_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TelegramConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type StockBoxConfig struct {
	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	CheckIntervalSeconds  int `yaml:"check_interval_seconds"`
	PartitionConcurrency  int `yaml:"partition_concurrency"`
	HistoryRetentionHours int `yaml:"history_retention_hours"`

	FetchConcurrency        int `yaml:"fetch_concurrency"`
	FetchRatePerSecond      int `yaml:"fetch_rate_per_second"`
	FetchAttempts           int `yaml:"fetch_attempts"`
	FetchBackoffBaseSeconds int `yaml:"fetch_backoff_base_seconds"`
	FetchJitterMinMillis    int `yaml:"fetch_jitter_min_millis"`
	FetchJitterMaxMillis    int `yaml:"fetch_jitter_max_millis"`

	NotifyConcurrency    int `yaml:"notify_concurrency"`
	NotifyAttempts       int `yaml:"notify_attempts"`
	NotifyTimeoutSeconds int `yaml:"notify_timeout_seconds"`

	// "shop" — реальная витрина, всё остальное — локальный fake.
	StorefrontMode    string `yaml:"storefront_mode"`
	StorefrontBaseURL string `yaml:"storefront_base_url"`
	StorefrontStoreID string `yaml:"storefront_store_id"`

	SubstoreSeedPath string `yaml:"substore_seed_path"`
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
