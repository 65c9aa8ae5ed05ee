package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyPassID contextKey = "pass_id"
	ContextKeyItemID contextKey = "item_id"
)

// WithPassID tags the context with the id of the running pass.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, ContextKeyPassID, passID)
}

// PassIDFromContext extracts the pass ID from context
func PassIDFromContext(ctx context.Context) string {
	if passID, ok := ctx.Value(ContextKeyPassID).(string); ok {
		return passID
	}
	return ""
}

// WithItemID tags the context with the work item being processed.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ContextKeyItemID, itemID)
}

// ItemIDFromContext extracts the work item ID from context
func ItemIDFromContext(ctx context.Context) string {
	if itemID, ok := ctx.Value(ContextKeyItemID).(string); ok {
		return itemID
	}
	return ""
}

// LoggerFromContext decorates logger with whatever pass/item ids the context carries.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := PassIDFromContext(ctx); id != "" {
		logger = logger.With("pass_id", id)
	}
	if id := ItemIDFromContext(ctx); id != "" {
		logger = logger.With("item_id", id)
	}
	return logger
}
