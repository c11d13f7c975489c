package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	ctxKeyRoomCode  ctxKey = "room_code"
	ctxKeySeat      ctxKey = "seat"
	ctxKeyRequestID ctxKey = "request_id"
)

// WithRoom stamps a context with the room code and seat carried through
// signaling call chains.
func WithRoom(ctx context.Context, roomCode string, seat int) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRoomCode, roomCode)
	return context.WithValue(ctx, ctxKeySeat, seat)
}

// WithRequestID stamps a context with a request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext adds room/seat/request fields from the context to the logger.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	fields := []zapcore.Field{}

	if code, ok := ctx.Value(ctxKeyRoomCode).(string); ok {
		fields = append(fields, zap.String("room_code", code))
	}
	if seat, ok := ctx.Value(ctxKeySeat).(int); ok {
		fields = append(fields, zap.Int("seat", seat))
	}
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		fields = append(fields, zap.String("request_id", id))
	}

	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// WithError adds error to logger
func (cl *ContextLogger) WithError(err error) *zap.Logger {
	return cl.logger.With(zap.Error(err))
}

// LogError logs an error with context
func (cl *ContextLogger) LogError(ctx context.Context, err error, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).With(zap.Error(err)).Error(message, fields...)
}

// LogInfo logs info message with context
func (cl *ContextLogger) LogInfo(ctx context.Context, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).Info(message, fields...)
}

// LogWarn logs warning message with context
func (cl *ContextLogger) LogWarn(ctx context.Context, message string, fields ...zapcore.Field) {
	cl.WithContext(ctx).Warn(message, fields...)
}
