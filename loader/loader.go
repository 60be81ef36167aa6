// Package loader reads resolved targets from disk.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"static-server/resolver"
)

// ErrorKind says why a target could not be loaded.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindPermissionDenied
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "other"
	}
}

var (
	// ErrNotFound matches a LoadError of kind KindNotFound.
	ErrNotFound = errors.New("target not found")
	// ErrPermission matches a LoadError of kind KindPermissionDenied.
	ErrPermission = errors.New("permission denied")
)

// LoadError is returned by Fetch for every failed load.
type LoadError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) and errors.Is(err, ErrPermission) match
// on the kind.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermission:
		return e.Kind == KindPermissionDenied
	}
	return false
}

// Content is a successfully loaded file.
type Content struct {
	Bytes     []byte
	Extension string
}

// Loader reads files off the request goroutine, bounded by a timeout.
type Loader struct {
	timeout time.Duration
	read    func(string) ([]byte, error)
}

// New returns a Loader. A zero timeout means reads are only bounded by the
// caller's context.
func New(timeout time.Duration) *Loader {
	return &Loader{
		timeout: timeout,
		read:    readRegularFile,
	}
}

type result struct {
	data []byte
	err  error
}

// Fetch loads target. A NotFound target fails without touching the
// filesystem.
func (l *Loader) Fetch(ctx context.Context, target resolver.Target) (*Content, error) {
	if target.Kind == resolver.NotFound || target.Path == "" {
		return nil, &LoadError{Kind: KindNotFound, Detail: "no file for request", Err: ErrNotFound}
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	done := make(chan result, 1)
	go func() {
		data, err := l.read(target.Path)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, classify(res.err)
		}
		return &Content{
			Bytes:     res.data,
			Extension: Extension(target.Path),
		}, nil
	case <-ctx.Done():
		return nil, &LoadError{
			Kind:   KindOther,
			Detail: fmt.Sprintf("reading %s: %v", target.Path, ctx.Err()),
			Err:    ctx.Err(),
		}
	}
}

// Extension returns the final dot-delimited suffix of the file name in p,
// without the dot, or "" when there is none.
func Extension(p string) string {
	base := filepath.Base(p)
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

func readRegularFile(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}

	return os.ReadFile(path) //nolint:gosec
}

func classify(err error) *LoadError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &LoadError{Kind: KindNotFound, Detail: err.Error(), Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &LoadError{Kind: KindPermissionDenied, Detail: err.Error(), Err: err}
	default:
		return &LoadError{Kind: KindOther, Detail: err.Error(), Err: err}
	}
}
