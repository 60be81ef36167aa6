package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type loggerKey struct{}

// ContextWithLogger returns a copy of ctx carrying logger.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the request logger stored in ctx, or fallback.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// RequestLoggerMiddleware tags every request with a fresh request id and
// stores a child logger carrying it in the request context.
func RequestLoggerMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLogger := logger.With(
			zap.String("request_id", uuid.New().String()),
			zap.String("remote_addr", r.RemoteAddr),
		)
		next.ServeHTTP(w, r.WithContext(ContextWithLogger(r.Context(), requestLogger)))
	})
}

// trackingResponseWriter remembers whether the response has been started
type trackingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (trw *trackingResponseWriter) WriteHeader(code int) {
	if !trw.written {
		trw.statusCode = code
		trw.written = true
	}
	trw.ResponseWriter.WriteHeader(code)
}

func (trw *trackingResponseWriter) Write(data []byte) (int, error) {
	if !trw.written {
		trw.WriteHeader(http.StatusOK)
	}
	return trw.ResponseWriter.Write(data)
}

// RecoveryMiddleware turns a panic anywhere below it into the regular 404
// response, so the client always receives a complete reply.
func RecoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trw := &trackingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			LoggerFromContext(r.Context(), logger).Error("panic recovered",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Bool("response_started", trw.written),
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stack"),
			)

			if !trw.written {
				writeNotFound(w, r)
			}
		}()

		next.ServeHTTP(trw, r)
	})
}
