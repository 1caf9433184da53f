package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultExcessThresholdHours = 8.0
	DefaultCivilTimeZone        = "America/Bogota"
)

// DatabaseConfig Postgres connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int
	MaxIdle     int
	AutoMigrate bool
}

// GetDSN returns the lib/pq keyword/value connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	StreamMaxLen int64
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
}

// PresenceConfig settings recognized by the presence core.
type PresenceConfig struct {
	ExcessThresholdHours float64
	CivilTimeZone        string
	// SweepInterval is zero when periodic sweeps are disabled.
	SweepInterval    time.Duration
	ClosedLookback   time.Duration
	OperationTimeout time.Duration
}

// Config service configuration.
type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	MQTT         MQTTConfig
	Webhook      WebhookConfig
	Presence     PresenceConfig
	StoreBackend string

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "monitors")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdle, err = getEnvInt("DB_MAX_IDLE", 5); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate, err = getEnvBool("DB_AUTO_MIGRATE", true); err != nil {
		return nil, err
	}

	cfg.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", "postgres"))
	if cfg.StoreBackend != "postgres" && cfg.StoreBackend != "memory" {
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", cfg.StoreBackend)
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.Redis.Stream = getEnv("EVENTS_STREAM", "monitor-attendance:events")
	maxLen, err := getEnvInt("EVENTS_STREAM_MAXLEN", 10000)
	if err != nil {
		return nil, err
	}
	cfg.Redis.StreamMaxLen = int64(maxLen)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "monitor-attendance")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.TopicPrefix = strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "attendance"), "/")
	cfg.MQTT.QoS = 1

	cfg.Webhook.URL = getEnv("WEBHOOK_URL", "")
	timeoutSec, err := getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.Webhook.Timeout = time.Duration(timeoutSec) * time.Second
	if cfg.Webhook.RetryCount, err = getEnvInt("WEBHOOK_RETRY_COUNT", 2); err != nil {
		return nil, err
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	if err := loadPresence(&cfg.Presence); err != nil {
		return nil, err
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// largest hour count a time.Duration can hold
const maxThresholdHours = float64(math.MaxInt64) / float64(time.Hour)

func loadPresence(p *PresenceConfig) error {
	threshold := DefaultExcessThresholdHours
	if raw := os.Getenv("EXCESS_THRESHOLD_HOURS"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid EXCESS_THRESHOLD_HOURS %q: %w", raw, err)
		}
		threshold = v
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return fmt.Errorf("EXCESS_THRESHOLD_HOURS must be a positive number, got %v", threshold)
	}
	if threshold >= maxThresholdHours {
		return fmt.Errorf("EXCESS_THRESHOLD_HOURS must be below %.0f, got %v", maxThresholdHours, threshold)
	}
	p.ExcessThresholdHours = threshold

	p.CivilTimeZone = getEnv("CIVIL_TIME_ZONE", DefaultCivilTimeZone)
	if _, err := time.LoadLocation(p.CivilTimeZone); err != nil {
		return fmt.Errorf("invalid CIVIL_TIME_ZONE %q: %w", p.CivilTimeZone, err)
	}

	// absent means no periodic sweep
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS %q: %w", raw, err)
		}
		if secs <= 0 {
			return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive, got %d", secs)
		}
		p.SweepInterval = time.Duration(secs) * time.Second
	}

	lookback, err := getEnvInt("SWEEP_CLOSED_LOOKBACK_HOURS", 24)
	if err != nil {
		return err
	}
	if lookback < 0 {
		return fmt.Errorf("SWEEP_CLOSED_LOOKBACK_HOURS must not be negative, got %d", lookback)
	}
	p.ClosedLookback = time.Duration(lookback) * time.Hour

	timeout, err := getEnvInt("OPERATION_TIMEOUT_SECONDS", 0)
	if err != nil {
		return err
	}
	if timeout < 0 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS must not be negative, got %d", timeout)
	}
	p.OperationTimeout = time.Duration(timeout) * time.Second
	return nil
}

// Threshold returns the excess threshold as a duration.
func (p PresenceConfig) Threshold() time.Duration {
	return time.Duration(p.ExcessThresholdHours * float64(time.Hour))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
