package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParse wraps failures to parse environment variables into a struct.
var ErrParse = errors.New("failed to parse environment")

var (
	dotenvOnce sync.Once
	dotenvErr  error

	mu    sync.Mutex
	cache = make(map[reflect.Type]any)
)

// loadDotenv reads .env from the working directory once. A missing file is not an error.
func loadDotenv() error {
	dotenvOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			dotenvErr = fmt.Errorf("failed to load .env: %w", err)
		}
	})
	return dotenvErr
}

// Load fills cfg from the environment. The first successful load of each
// type is cached and copied into cfg on later calls.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil target", ErrParse)
	}
	if err := loadDotenv(); err != nil {
		return err
	}

	typ := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	var loaded T
	if err := env.Parse(&loaded); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	cache[typ] = loaded
	*cfg = loaded
	return nil
}

// MustLoad is Load that panics on error. Intended for program startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops all cached values so the next Load reads the environment again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}
