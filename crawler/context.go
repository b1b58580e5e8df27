package crawler

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContextKey string

const (
	ContextIDKey ContextKey = "context_id"
	URLKey       ContextKey = "url"
)

// GetContextLogger creates a logger with context information
func GetContextLogger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	logger := baseLogger

	if contextID := GetContextID(ctx); contextID != "" {
		logger = logger.With(zap.String("context_id", contextID))
	}

	if u := GetContextURL(ctx); u != "" {
		logger = logger.With(zap.String("url", u))
	}

	return logger
}

func WithContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextIDKey, id)
}

func WithURL(ctx context.Context, u string) context.Context {
	return context.WithValue(ctx, URLKey, u)
}

// GenerateContextID generates a unique context ID with a prefix
func GenerateContextID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func GetContextID(ctx context.Context) string {
	id, _ := ctx.Value(ContextIDKey).(string)
	return id
}

func GetContextURL(ctx context.Context) string {
	u, _ := ctx.Value(URLKey).(string)
	return u
}
