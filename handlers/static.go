package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"static-server/loader"
	"static-server/resolver"
)

// PathResolver classifies a raw request path.
type PathResolver interface {
	Resolve(rawPath string) resolver.Target
}

// ContentLoader reads a resolved target.
type ContentLoader interface {
	Fetch(ctx context.Context, target resolver.Target) (*loader.Content, error)
}

// ContentTypes maps an extension to a Content-Type value.
type ContentTypes interface {
	Lookup(ext string) string
}

// Static serves pages and assets. Every request ends in either a 200 with the
// file bytes or a plain-text 404.
type Static struct {
	resolver PathResolver
	loader   ContentLoader
	types    ContentTypes
	logger   *zap.Logger
}

// NewStatic builds the static file handler.
func NewStatic(r PathResolver, l ContentLoader, types ContentTypes, logger *zap.Logger) *Static {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Static{
		resolver: r,
		loader:   l,
		types:    types,
		logger:   logger,
	}
}

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context(), s.logger)

	target := s.resolver.Resolve(r.URL.RequestURI())

	content, err := s.loader.Fetch(r.Context(), target)
	if err != nil {
		s.notFound(w, r, logger, target, err)
		return
	}

	w.Header().Set("Content-Type", s.types.Lookup(content.Extension))
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Bytes)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(content.Bytes); err != nil {
		logger.Debug("writing response body", zap.String("file", target.Path), zap.Error(err))
	}

	logger.Info(statusLine(http.StatusOK, r),
		zap.Int("status", http.StatusOK),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Stringer("kind", target.Kind),
		zap.String("file", target.Path),
		zap.Int("bytes", len(content.Bytes)),
	)
}

func (s *Static) notFound(w http.ResponseWriter, r *http.Request, logger *zap.Logger, target resolver.Target, err error) {
	fields := []zap.Field{
		zap.Int("status", http.StatusNotFound),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Stringer("kind", target.Kind),
	}
	if target.Path != "" {
		fields = append(fields, zap.String("file", target.Path))
	}

	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		fields = append(fields, zap.Stringer("reason", loadErr.Kind))
	}
	fields = append(fields, zap.Error(err))

	// permission and I/O failures collapse into 404 too
	writeNotFound(w, r)

	logger.Warn(statusLine(http.StatusNotFound, r), fields...)
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("404 NOT FOUND\n\n%s %s", r.Method, r.URL.Path), http.StatusNotFound)
}

func statusLine(status int, r *http.Request) string {
	return fmt.Sprintf("%d %s %s", status, r.Method, r.URL.Path)
}
