package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string // postgres URL or sqlite:<path>
	RedisURL            string // enables Redis property leases and health counters
	AdminKeyHash        string // bcrypt hash of the key required by /settlement routes
	HealthAdminKey      string
	SweepSchedule       string // cron expression, e.g. "@every 5m" or "*/5 * * * *"
	SweepConcurrency    int
	LockTTL             time.Duration
	AMQPURL             string
	AMQPExchange        string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for settlement emails (Brevo)
	MailFrom            string // MAIL_FROM sender email (default noreply@brickshare.io)
	FrontendURLEndsWith string
	DevPassword         string
	CommitRatePerSecond float64
	CommitBurst         int
	AutoMigrate         bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	viper.SetDefault("SWEEP_CONCURRENCY", 4)
	viper.SetDefault("LOCK_TTL", "30s")
	viper.SetDefault("AMQP_EXCHANGE", "brickshare.settlement")
	viper.SetDefault("COMMIT_RATE_PER_SECOND", 2.0)
	viper.SetDefault("COMMIT_BURST", 5)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	lockTTL := viper.GetDuration("LOCK_TTL")
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		AdminKeyHash:        viper.GetString("ADMIN_KEY_HASH"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		SweepSchedule:       viper.GetString("SWEEP_SCHEDULE"),
		SweepConcurrency:    viper.GetInt("SWEEP_CONCURRENCY"),
		LockTTL:             lockTTL,
		AMQPURL:             viper.GetString("AMQP_URL"),
		AMQPExchange:        viper.GetString("AMQP_EXCHANGE"),
		SendinblueAPIKey:    viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		CommitRatePerSecond: viper.GetFloat64("COMMIT_RATE_PER_SECOND"),
		CommitBurst:         viper.GetInt("COMMIT_BURST"),
		AutoMigrate:         env != "production" || strings.EqualFold(viper.GetString("AUTO_MIGRATE"), "true"),
	}, nil
}
