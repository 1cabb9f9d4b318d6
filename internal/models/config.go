package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Backend  string
	Formance FormanceConfig
	Engine   EngineConfig
	Notifier NotifierConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Http     HttpConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// FormanceConfig holds Formance Stack credentials and the target ledger
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// EngineConfig bounds the purchase pipeline
type EngineConfig struct {
	MaxCommitAttempts int
	RetryBackoff      time.Duration
	PurchaseTimeout   time.Duration
}

// NotifierConfig sizes the event queue and per-sink delivery deadline
type NotifierConfig struct {
	QueueSize       int
	DeliveryTimeout time.Duration
}

// RedisConfig is optional; an empty URL disables the Redis sink
type RedisConfig struct {
	URL     string
	Channel string
}

// KafkaConfig is optional; no brokers disables the Kafka sink
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// HttpConfig holds the listen address and CORS origins
type HttpConfig struct {
	Addr           string
	AllowedOrigins []string
}
