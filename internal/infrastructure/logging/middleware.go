package logging

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

type contextKey string

const loggerKey contextKey = "logger"

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from the context.
// If no logger is found, returns the default logger.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerKey).(*Logger)
	if !ok || logger == nil {
		return Default()
	}
	return logger
}

// GinMiddleware attaches a request-scoped logger to every request on the
// viewer endpoint and logs the request once it completes.
func GinMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestLogger := logger.With(Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"remote": c.ClientIP(),
		})
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), requestLogger))

		c.Next()

		requestLogger.Debug("viewer endpoint request", Fields{
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}
