package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Scheduler struct {
	TickSpec           string
	AllocateSpec       string
	TokenRefreshSpec   string
	WorkerCount        int
	BatchDeadline      time.Duration
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	LookaheadDays      int
	RefreshMargin      time.Duration
	PostingGracePeriod time.Duration
}

type Config struct {
	XClientID          string
	XClientSecret      string
	GoogleClientID     string
	GoogleClientSecret string
	PostgresURI        string
	RedisURI           string
	R2                 R2
	SecretKey          string
	CookieName         string
	Scheduler          Scheduler
}

func LoadConfig() *Config {
	return &Config{
		XClientID:          getEnv("X_CLIENT_ID", ""),
		XClientSecret:      getEnv("X_CLIENT_SECRET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "postpilot_session"),
		Scheduler: Scheduler{
			TickSpec:           getEnv("SCHEDULER_TICK_SPEC", "@every 00h01m00s"),
			AllocateSpec:       getEnv("QUEUE_ALLOCATE_SPEC", "@every 00h05m00s"),
			TokenRefreshSpec:   getEnv("TOKEN_REFRESH_SPEC", "@every 00h10m00s"),
			WorkerCount:        getEnvInt("SCHEDULER_WORKERS", 10),
			BatchDeadline:      getEnvDuration("SCHEDULER_BATCH_DEADLINE", 5*time.Minute),
			MaxRetries:         getEnvInt("POST_MAX_RETRIES", 5),
			BackoffBase:        getEnvDuration("POST_BACKOFF_BASE", 2*time.Minute),
			BackoffCap:         getEnvDuration("POST_BACKOFF_CAP", 6*time.Hour),
			LookaheadDays:      getEnvInt("QUEUE_LOOKAHEAD_DAYS", 90),
			RefreshMargin:      getEnvDuration("TOKEN_REFRESH_MARGIN", 5*time.Minute),
			PostingGracePeriod: getEnvDuration("POSTING_GRACE_PERIOD", 15*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
