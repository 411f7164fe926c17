package logger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pms/billing/internal/domain/shared"
)

// FromContextOr returns the logger carried by ctx, or fallback when ctx has none
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// Failure logs a failed operation at a level matching its cause: validation
// at debug, in-flight conflicts at info, backend and other failures at warn.
func Failure(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case shared.IsValidation(err):
		log.Debug(msg, fields...)
	case errors.Is(err, shared.ErrConflict):
		log.Info(msg, fields...)
	default:
		log.Warn(msg, fields...)
	}
}
