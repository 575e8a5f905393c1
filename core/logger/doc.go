// Package logger provides structured logging helpers built on log/slog.
//
// New builds a *slog.Logger from options, and the attribute helpers give the
// hub's log lines consistent keys.
//
// # Basic Usage
//
//	log := logger.New(
//		logger.WithDevelopment("wshub"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("connection accepted",
//		logger.Component("hub"),
//		logger.ConnID(c.ID()),
//		logger.ConnUUID(c.UUID()),
//		logger.ClientIP(ip),
//	)
//
// # Environment Configurations
//
//	// Development: text format, debug level, stdout
//	log := logger.New(logger.WithDevelopment("wshub"))
//
//	// Production: JSON format, info level, stdout
//	log := logger.New(logger.WithProduction("wshub"))
//
//	// Custom destination for tests
//	var buf bytes.Buffer
//	log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
//
// # Context Values
//
// WithContextValue and WithContextExtractors add attributes taken from the
// context of every *Context call:
//
//	log := logger.New(logger.WithContextValue("request_id", requestIDKey{}))
//	log.InfoContext(ctx, "upgrading")
//
// # Attribute Helpers
//
// Helpers return the empty slog.Attr for nil or empty values, which slog
// drops, so they are safe to pass unconditionally:
//
//	log.Warn("send failed", logger.Error(err), logger.Channel("rooms/red"))
//
// Discard returns a logger that drops everything and is the default for
// library packages that accept a WithLogger option.
package logger
