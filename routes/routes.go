package routes

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"static-server/handlers"
	"static-server/loader"
	"static-server/mimetable"
	"static-server/resolver"
)

// Options configures the handler chain.
type Options struct {
	AssetsDir          string
	PagesDir           string
	ReadTimeout        time.Duration
	MimeTypes          map[string]string
	DefaultContentType string
	Logger             *zap.Logger
	// Limiter enables per-client rate limiting when non-nil. Clients are keyed
	// by connection address unless the limiter trusts X-Forwarded-For.
	Limiter *handlers.RateLimiter
}

// InitializeRoutes builds the static handler and wraps it in the middleware
// chain. There is no mux: every path goes through the same three-way
// classification.
func InitializeRoutes(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res := resolver.New(opts.AssetsDir, opts.PagesDir)
	types := mimetable.New(opts.MimeTypes, opts.DefaultContentType)
	static := handlers.NewStatic(res, loader.New(opts.ReadTimeout), types, logger)

	logger.Debug("static roots",
		zap.String("assets_root", res.AssetsRoot()),
		zap.String("pages_root", res.PagesRoot()),
		zap.Int("mime_types", types.Len()),
		zap.Bool("rate_limit", opts.Limiter != nil),
	)

	var h http.Handler = static
	h = handlers.RecoveryMiddleware(logger, h)
	h = handlers.RateLimitMiddleware(opts.Limiter, logger, h)
	h = handlers.RequestLoggerMiddleware(logger, h)

	return h
}
