package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/venuelane/service-reservation/internal/platform/database"
)

// ServiceConfig holds all configuration for the reservation service.
type ServiceConfig struct {
	Port   string
	AppEnv string

	// Timezone is the single fixed civil timezone every date/time in the
	// system is interpreted in.
	Timezone string

	TokenGrace time.Duration

	DBConfig     database.PostgresConfig
	JWTSecret    string
	KafkaBrokers []string

	BlobDir string

	WorkerInterval  time.Duration
	WorkerBurst     int
	WorkerIdleDelay time.Duration
}

// Load reads configuration from RESERVATION_-prefixed environment variables
// with local-development defaults.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RESERVATION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("TIMEZONE", "Asia/Kuala_Lumpur")
	v.SetDefault("TOKEN_GRACE_SECONDS", 300)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "reservations")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")

	v.SetDefault("BLOB_DIR", "./data/evidence")

	v.SetDefault("WORKER_INTERVAL_MS", 1000)
	v.SetDefault("WORKER_BURST", 5)
	v.SetDefault("WORKER_IDLE_DELAY_MS", 2000)

	return &ServiceConfig{
		Port:       v.GetString("SERVICE_PORT"),
		AppEnv:     v.GetString("APP_ENV"),
		Timezone:   v.GetString("TIMEZONE"),
		TokenGrace: time.Duration(v.GetInt("TOKEN_GRACE_SECONDS")) * time.Second,
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTSecret:       v.GetString("JWT_SECRET"),
		KafkaBrokers:    strings.Split(v.GetString("KAFKA_BROKERS"), ","),
		BlobDir:         v.GetString("BLOB_DIR"),
		WorkerInterval:  time.Duration(v.GetInt("WORKER_INTERVAL_MS")) * time.Millisecond,
		WorkerBurst:     v.GetInt("WORKER_BURST"),
		WorkerIdleDelay: time.Duration(v.GetInt("WORKER_IDLE_DELAY_MS")) * time.Millisecond,
	}, nil
}
