package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Elastic   ElasticsearchConfig
	Engine    EngineConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	GRPCPort string `env:"GRPC_PORT" envDefault:":8083"`
	Locale   string `env:"DEFAULT_LOCALE" envDefault:"en"`
}

type LoggerConfig struct {
	Level             string `env:"LOGGER_LEVEL" envDefault:"debug"`
	Encoding          string `env:"LOGGER_ENCODING" envDefault:"console"`
	DisableCaller     bool   `env:"LOGGER_DISABLE_CALLER" envDefault:"false"`
	DisableStacktrace bool   `env:"LOGGER_DISABLE_STACKTRACE" envDefault:"true"`
}

type PostgresConfig struct {
	// Driver selects the store: postgres, or sqlite for local runs.
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"stock.db"`
	Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port            string        `env:"POSTGRES_PORT" envDefault:"5433"`
	User            string        `env:"POSTGRES_USER" envDefault:"omnipos"`
	Password        string        `env:"POSTGRES_PASSWORD" envDefault:"omnipos"`
	DBName          string        `env:"POSTGRES_DB" envDefault:"omnipos_stock"`
	SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"POSTGRES_CONN_MAX_IDLE_TIME" envDefault:"1m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaConfig struct {
	Brokers            []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	OrderEventsTopic   string   `env:"KAFKA_TOPIC_ORDERS" envDefault:"orders.events"`
	NotificationsTopic string   `env:"KAFKA_TOPIC_STOCK" envDefault:"stock.orders"`
	GroupID            string   `env:"KAFKA_GROUP_STOCK" envDefault:"stock"`
}

type ElasticsearchConfig struct {
	Addresses []string `env:"ELASTICSEARCH_ADDRESSES" envDefault:"http://localhost:9200" envSeparator:","`
	Username  string   `env:"ELASTICSEARCH_USERNAME"`
	Password  string   `env:"ELASTICSEARCH_PASSWORD"`
}

// EngineConfig bounds how hard a stock transaction fights for its locks.
type EngineConfig struct {
	MaxTxAttempts  uint          `env:"ENGINE_MAX_TX_ATTEMPTS" envDefault:"3"`
	LockTimeout    time.Duration `env:"ENGINE_LOCK_TIMEOUT" envDefault:"3s"`
	RetryBaseDelay time.Duration `env:"ENGINE_RETRY_BASE_DELAY" envDefault:"20ms"`
	SQLiteBusyMs   int           `env:"SQLITE_BUSY_TIMEOUT_MS" envDefault:"3000"`
}

type TelemetryConfig struct {
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"omnipos-stock-service"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

// LoadEnv reads an optional .env file and parses the environment into a
// Config.
func LoadEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Postgres.Driver != "postgres" && cfg.Postgres.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Postgres.Driver)
	}
	return cfg, nil
}
