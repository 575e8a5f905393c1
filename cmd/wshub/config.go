package main

import (
	"time"

	"github.com/dmitrymomot/wshub/core/hub"
)

type Config struct {
	AppName       string        `env:"APP_NAME" envDefault:"wshub"`
	AppEnv        string        `env:"APP_ENV" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"1m"`

	// Health, metrics and publishing endpoints; disabled when empty
	AdminAddr string `env:"ADMIN_ADDR" envDefault:""`

	// Rate limit buckets go to Redis when set, otherwise they stay in memory
	RedisURL string `env:"REDIS_URL"`

	Hub hub.Config
}
