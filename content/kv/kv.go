// Package kv implements a content:// resolver on a key-value bucket.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/accelf/driveshare/content"

	"github.com/micromdm/nanolib/storage/kv"
)

const (
	// Scheme is the URI scheme handled by KV.
	Scheme = "content"

	// DefaultAuthority is the URI authority (host) served by default.
	DefaultAuthority = "driveshare"
)

// KV resolves content://authority/name URIs to values in a bucket.
// Names are stored path-escaped so that any name is a valid key.
type KV struct {
	b         kv.KeysPrefixTraversingBucket
	authority string
}

// New creates a new content resolver on b serving authority.
// DefaultAuthority is used if authority is empty.
func New(b kv.KeysPrefixTraversingBucket, authority string) *KV {
	if authority == "" {
		authority = DefaultAuthority
	}
	return &KV{b: b, authority: authority}
}

// Authority returns the URI authority served by s.
func (s *KV) Authority() string {
	return s.authority
}

// URI returns the URI of name.
func (s *KV) URI(name string) string {
	return URI(s.authority, name)
}

// URI returns the content URI of name under authority.
func URI(authority, name string) string {
	return (&url.URL{Scheme: Scheme, Host: authority, Path: "/" + strings.TrimPrefix(name, "/")}).String()
}

// Name parses uri and returns the resource name.
// The URI must be a content URI for authority.
func Name(authority, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrInvalidURI, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%w: not a %s URI: %s", content.ErrInvalidURI, Scheme, uri)
	}
	if u.Host != authority {
		return "", fmt.Errorf("%w: unknown authority: %s", content.ErrInvalidURI, u.Host)
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}

// ResourceName is like Name but rejects empty names.
func ResourceName(authority, uri string) (string, error) {
	name, err := Name(authority, uri)
	if err == nil && name == "" {
		err = fmt.Errorf("%w: empty name", content.ErrInvalidURI)
	}
	return name, err
}

func key(name string) string {
	return url.PathEscape(name)
}

// OpenReader returns a reader over a snapshot of the value at uri.
func (s *KV) OpenReader(ctx context.Context, uri string) (io.ReadCloser, error) {
	name, err := ResourceName(s.authority, uri)
	if err != nil {
		return nil, err
	}
	v, err := s.b.Get(ctx, key(name))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", content.ErrNotFound, uri)
	} else if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

// writer buffers writes and stores them in the bucket on Close.
type writer struct {
	ctx    context.Context
	b      kv.RWBucket
	k      string
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed writer")
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.b.Set(w.ctx, w.k, w.buf.Bytes())
}

// OpenWriter returns a writer that replaces the value at uri on Close.
// The existing value is truncated immediately.
func (s *KV) OpenWriter(ctx context.Context, uri string) (io.WriteCloser, error) {
	name, err := ResourceName(s.authority, uri)
	if err != nil {
		return nil, err
	}
	if err = s.b.Set(ctx, key(name), nil); err != nil {
		return nil, fmt.Errorf("truncating: %w", err)
	}
	return &writer{ctx: ctx, b: s.b, k: key(name)}, nil
}

// List returns the URIs of all values whose name starts with the path of uri.
func (s *KV) List(ctx context.Context, uri string) ([]string, error) {
	prefix, err := Name(s.authority, uri)
	if err != nil {
		return nil, err
	}
	keys := kv.AllKeysPrefix(ctx, s.b, key(prefix))
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		name, err := url.PathUnescape(k)
		if err != nil {
			continue
		}
		ret = append(ret, s.URI(name))
	}
	sort.Strings(ret)
	return ret, nil
}
