// Package content resolves opaque resource URIs to byte streams.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrResourceUnavailable indicates a source or destination could not be opened.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrNotFound is returned by resolvers for resources that do not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnsupportedScheme indicates no resolver handles a URI scheme.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")

	// ErrInvalidURI indicates a URI a resolver could not make sense of.
	ErrInvalidURI = errors.New("invalid URI")
)

// Resolver opens resources by URI.
type Resolver interface {
	// OpenReader opens uri for reading.
	// ErrNotFound should be wrapped for missing resources.
	OpenReader(ctx context.Context, uri string) (io.ReadCloser, error)

	// OpenWriter opens uri for writing, discarding any existing content.
	// Buffering implementations commit the written content on Close and
	// report commit errors from Close.
	OpenWriter(ctx context.Context, uri string) (io.WriteCloser, error)
}

// Lister enumerates resources.
type Lister interface {
	// List returns the URIs of the resources contained in the container uri.
	// Results are sorted.
	List(ctx context.Context, uri string) ([]string, error)
}

// Copy reads the entire content of src and writes it to dst.
// The destination is opened (and truncated) before the source.
// Failure to open either yields an error wrapping ErrResourceUnavailable.
// Both handles are closed on every return path. A failure after the
// destination was opened leaves it in an undefined state.
func Copy(ctx context.Context, r Resolver, src, dst string) (n int64, err error) {
	w, err := r.OpenWriter(ctx, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: opening destination %s: %w", ErrResourceUnavailable, dst, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing destination: %w", cerr)
		}
	}()

	rc, err := r.OpenReader(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("%w: opening source %s: %w", ErrResourceUnavailable, src, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("reading source: %w", err)
	}

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	written, err := w.Write(b)
	if err != nil {
		return int64(written), fmt.Errorf("writing destination: %w", err)
	}
	return int64(written), nil
}
