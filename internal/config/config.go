package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	KafkaBrokerURL       string
	KafkaOpenEventsTopic string
	KafkaSentEventsTopic string
	KafkaConsumerGroup   string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	// ResendAPIKey has no default on purpose: without it the inbound
	// receiver fails every request closed.
	ResendAPIKey  string
	ResendBaseURL string

	MigrationsPath string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("MAILTRACK_HTTP_PORT", 8080)

	cfg.DBConfig.Host = getEnvOrDefault("MAILTRACK_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("MAILTRACK_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("MAILTRACK_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("MAILTRACK_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("MAILTRACK_DB_NAME", "mailtrack_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("MAILTRACK_DB_SSLMODE", "disable")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOpenEventsTopic = getEnvOrDefault("KAFKA_OPEN_EVENTS_TOPIC", "email-open-events")
	cfg.KafkaSentEventsTopic = getEnvOrDefault("KAFKA_SENT_EVENTS_TOPIC", "email-sent-events")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "mailtrack-service-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.ResendBaseURL = getEnvOrDefault("RESEND_BASE_URL", "https://api.resend.com")

	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	return cfg, nil
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
