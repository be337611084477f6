package orm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger returns a Logger that writes every query at debug level.
func NewZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

func (z zerologLogger) Log(_ context.Context, query string, args ...any) {
	z.l.Debug().Str("query", query).Interface("args", args).Msg("sql")
}

// ErrorHandler receives every database error a Model operation runs into.
// The error is also returned to the caller; the handler is for display or
// reporting.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) HandleError(err error) { f(err) }

// LogErrorHandler reports errors through a zerolog.Logger.
type LogErrorHandler struct {
	Logger zerolog.Logger
}

func (h LogErrorHandler) HandleError(err error) {
	ev := h.Logger.Error().Err(err)

	var me *ModelError
	var ce *ConnectionError
	switch {
	case errors.As(err, &me):
		ev = ev.Str("kind", "model").Str("op", me.Op)
		if me.Entity != "" {
			ev = ev.Str("entity", me.Entity)
		}
	case errors.As(err, &ce):
		ev = ev.Str("kind", "connection").Str("key", ce.Key)
	}
	ev.Msg("Database error")
}
