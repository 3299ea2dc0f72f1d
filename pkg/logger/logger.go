// Package logger builds the process-wide zap logger and carries request
// metadata through contexts so log lines can be correlated per request
// and per tenant.
package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	requestIDKey      ctxKey = "request_id"
	organizationIDKey ctxKey = "organization_id"
)

// Config selects log verbosity and output encoding.
type Config struct {
	Level    string
	Encoding string
}

// New builds a zap.Logger writing to stdout. Unknown levels fall back to
// info, unknown encodings to JSON.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		buildEncoder(cfg.Encoding),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		level,
	)
	return zap.New(core, zap.AddCaller()), nil
}

func buildEncoder(encoding string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if encoding == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// ContextWithRequestID attaches a request id to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithOrganization attaches the tenant id to the context.
func ContextWithOrganization(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, organizationIDKey, organizationID)
}

// FromContext enriches the logger with whatever request metadata the
// context carries.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		base = base.With(zap.String("request_id", reqID))
	}
	if orgID, ok := ctx.Value(organizationIDKey).(string); ok && orgID != "" {
		base = base.With(zap.String("organization_id", orgID))
	}
	return base
}
