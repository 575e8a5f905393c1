package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/wshub/core/config"
	"github.com/dmitrymomot/wshub/core/hub"
	"github.com/dmitrymomot/wshub/core/logger"
	"github.com/dmitrymomot/wshub/core/server"
	"github.com/dmitrymomot/wshub/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg) // panic on error

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	opts := []hub.Option{hub.WithLogger(log)}
	var checks []healthCheck
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("Failed to connect to redis", logger.Component("redis"), logger.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		checks = append(checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		opts = append(opts, hub.WithRateLimitStore(ratelimiter.NewRedisStore(client, "wshub:ratelimit:")))
	}

	h, err := hub.New(cfg.Hub, opts...)
	if err != nil {
		log.Error("Failed to create hub", logger.Component("hub"), logger.Error(err))
		os.Exit(1)
	}

	if err := subscribe(h, log); err != nil {
		log.Error("Failed to register hub listeners", logger.Component("hub"), logger.Error(err))
		os.Exit(1)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(h.Run(ctx))
	eg.Go(reportStats(ctx, log, h, cfg.StatsInterval))
	if cfg.AdminAddr != "" {
		admin := server.New(cfg.AdminAddr, server.WithLogger(log.With(logger.Component("admin"))))
		eg.Go(admin.Run(ctx, newAdminRouter(h, log, checks...)))
	}

	log.Info("Hub started", logger.Addr(h.Address()), logger.Path(cfg.Hub.Path))

	if err := eg.Wait(); err != nil {
		log.Error("Failed to run hub", logger.Component("hub"), logger.Error(err))
		os.Exit(1)
	}

	h.WriteMetrics(os.Stderr)
	log.Info("Application stopped")
}

// subscribe registers the binary's hub listeners.
func subscribe(h *hub.Hub, log *slog.Logger) error {
	_, connectErr := h.OnConnect(func(ctx context.Context, ev hub.ConnectEvent) error {
		log.InfoContext(ctx, "client connected", logger.ConnID(ev.Conn.ID()), logger.Addr(ev.Conn.RemoteAddr()))
		return ev.Conn.Send(reply{Action: "welcome", From: ev.Conn.ID()})
	})
	_, messageErr := h.OnMessage(handleMessage(h))
	_, disconnectErr := h.OnDisconnect(func(ctx context.Context, ev hub.DisconnectEvent) error {
		log.InfoContext(ctx, "client disconnected",
			logger.ConnID(ev.Conn.ID()),
			logger.CloseCode(ev.Code),
			logger.Reason(ev.Reason))
		return nil
	})
	return errors.Join(connectErr, messageErr, disconnectErr)
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var env logger.Option
	switch cfg.AppEnv {
	case "production":
		env = logger.WithProduction(cfg.AppName)
	case "staging":
		env = logger.WithStaging(cfg.AppName)
	default:
		env = logger.WithDevelopment(cfg.AppName)
	}
	return logger.New(env, logger.WithLevel(level))
}

func reportStats(ctx context.Context, log *slog.Logger, h *hub.Hub, every time.Duration) func() error {
	return func() error {
		if every <= 0 {
			return nil
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s := h.Stats()
				log.Info("hub stats",
					logger.Count("connections", int(s.Connections)),
					logger.Count("received", int(s.MessagesReceived)),
					logger.Count("dropped", int(s.MessagesDropped)),
					logger.Count("rejected", int(s.Rejected)),
					slog.Float64("rate_1m", s.MessageRate1))
			}
		}
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
