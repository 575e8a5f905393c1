package hub

import (
	"net"
	"strconv"
	"time"

	"github.com/dmitrymomot/wshub/core/conn"
	"github.com/dmitrymomot/wshub/core/server"
	"github.com/dmitrymomot/wshub/pkg/ratelimiter"
)

// Config holds hub configuration with environment variable support.
type Config struct {
	// Listener
	Host      string `env:"WS_HOST" envDefault:"localhost"`
	Port      int    `env:"WS_PORT" envDefault:"8080"`
	Path      string `env:"WS_PATH" envDefault:"/"`
	AutoServe bool   `env:"WS_AUTO_SERVE" envDefault:"false"`

	// TLS is enabled only when both files are set
	TLSCertFile string `env:"WS_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"WS_TLS_KEY_FILE"`

	// Upgrade
	ReadBufferSize  int      `env:"WS_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int      `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`
	AllowedOrigins  []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`

	// Per-connection
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"1048576"`
	WriteWait      time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	PingPeriod     time.Duration `env:"WS_PING_PERIOD" envDefault:"54s"`
	SendBufferSize int           `env:"WS_SEND_BUFFER_SIZE" envDefault:"256"`

	ShutdownTimeout time.Duration `env:"WS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// AutoLeave removes a closing connection from every channel and group
	// before disconnect is emitted.
	AutoLeave bool `env:"WS_AUTO_LEAVE" envDefault:"false"`

	// Inbound message limit per connection; zero capacity disables it
	RateLimitCapacity       int           `env:"WS_RATE_LIMIT_CAPACITY" envDefault:"0"`
	RateLimitRefillRate     int           `env:"WS_RATE_LIMIT_REFILL_RATE" envDefault:"0"`
	RateLimitRefillInterval time.Duration `env:"WS_RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		Path:            "/",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxMessageSize:  conn.DefaultMaxMessageSize,
		WriteWait:       conn.DefaultWriteWait,
		PongWait:        conn.DefaultPongWait,
		PingPeriod:      conn.DefaultPingPeriod,
		SendBufferSize:  conn.DefaultSendBufferSize,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Addr returns host:port. A zero port asks the OS for a free one.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func (c Config) rateLimit() ratelimiter.Config {
	return ratelimiter.Config{
		Capacity:       c.RateLimitCapacity,
		RefillRate:     c.RateLimitRefillRate,
		RefillInterval: c.RateLimitRefillInterval,
	}
}

func (c Config) server() server.Config {
	return server.Config{
		Addr:              c.Addr(),
		ReadHeaderTimeout: server.DefaultReadHeaderTimeout,
		IdleTimeout:       server.DefaultIdleTimeout,
		ShutdownTimeout:   c.ShutdownTimeout,
		MaxHeaderBytes:    server.DefaultMaxHeaderBytes,
		TLSCertFile:       c.TLSCertFile,
		TLSKeyFile:        c.TLSKeyFile,
	}
}

func (c Config) connOptions() []conn.Option {
	return []conn.Option{
		conn.WithMaxMessageSize(c.MaxMessageSize),
		conn.WithWriteWait(c.WriteWait),
		conn.WithPongWait(c.PongWait),
		conn.WithPingPeriod(c.PingPeriod),
		conn.WithSendBufferSize(c.SendBufferSize),
	}
}
