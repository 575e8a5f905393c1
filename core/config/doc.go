// Package config loads typed configuration structs from environment variables
// with caarlos0/env. A .env file in the working directory is read once on
// first use through godotenv and never overrides variables already set.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/wshub/core/config"
//
//	type AppConfig struct {
//		Name     string `env:"APP_NAME" envDefault:"wshub"`
//		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
//
//	var app AppConfig
//	if err := config.Load(&app); err != nil {
//		log.Fatal(err)
//	}
//
//	var hubCfg hub.Config
//	config.MustLoad(&hubCfg) // panics on parse errors
//
// # Caching Behavior
//
// Each struct type is parsed once per process. Later calls copy the cached
// value, so environment changes after the first load are not observed until
// Reset is called. Different types are cached independently.
package config
