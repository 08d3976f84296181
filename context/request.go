package context

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextkey string

const (
	loggerKey    contextkey = "logger"
	requestIDKey contextkey = "request_id"
)

// WithLogger binds the request-scoped log entry to ctx.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// Logger returns the request-scoped entry, or an entry on the standard
// logger when none was set.
func Logger(ctx context.Context) *logrus.Entry {
	entry, ok := ctx.Value(loggerKey).(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return entry
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns "" for requests that did not pass through the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
