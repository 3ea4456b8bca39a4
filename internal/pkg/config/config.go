package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.)
// - default: Values common across all environments (timeouts, thresholds, etc.)
// -----------------------------------------------------------------------------

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Resilience ResilienceConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

// ResilienceConfig selects and tunes the strategy guarding the
// loans ↔ books-service interaction. Strategy is resolved once at startup.
type ResilienceConfig struct {
	Strategy       string `envconfig:"RESILIENCE_STRATEGY" default:"none"`
	CircuitBreaker CircuitBreakerConfig
	Saga           SagaConfig
	Outbox         OutboxConfig
}

type CircuitBreakerConfig struct {
	Timeout                  time.Duration `envconfig:"CIRCUIT_BREAKER_TIMEOUT" default:"3s"`
	ErrorThresholdPercentage int           `envconfig:"CIRCUIT_BREAKER_ERROR_THRESHOLD" default:"50"`
	ResetTimeout             time.Duration `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30s"`
	VolumeThreshold          int           `envconfig:"CIRCUIT_BREAKER_VOLUME_THRESHOLD" default:"5"`
	RollingWindow            time.Duration `envconfig:"CIRCUIT_BREAKER_ROLLING_WINDOW" default:"10s"`
}

type SagaConfig struct {
	Timeout time.Duration `envconfig:"SAGA_TIMEOUT" default:"5s"`
}

type OutboxConfig struct {
	MaxRetries   int           `envconfig:"OUTBOX_MAX_RETRIES" default:"5"`
	PollInterval time.Duration `envconfig:"OUTBOX_RETRY_INTERVAL" default:"5s"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:16379",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
			MaxAge:       12 * time.Hour,
		},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		Resilience: ResilienceConfig{
			Strategy: "none",
			CircuitBreaker: CircuitBreakerConfig{
				Timeout:                  100 * time.Millisecond,
				ErrorThresholdPercentage: 50,
				ResetTimeout:             200 * time.Millisecond,
				VolumeThreshold:          5,
				RollingWindow:            time.Second,
			},
			Saga: SagaConfig{
				Timeout: 100 * time.Millisecond,
			},
			Outbox: OutboxConfig{
				MaxRetries:   5,
				PollInterval: 50 * time.Millisecond,
			},
		},
	}
}
