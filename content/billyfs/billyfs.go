// Package billyfs implements a file:// content resolver on a go-billy filesystem.
package billyfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"sort"

	"github.com/accelf/driveshare/content"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Scheme is the URI scheme handled by FS.
const Scheme = "file"

// FS resolves file:// URIs against a billy filesystem.
type FS struct {
	fs   billy.Filesystem
	perm os.FileMode
}

// Option configures FS.
type Option func(*FS)

// WithPerm sets the permissions of files created when writing.
func WithPerm(perm os.FileMode) Option {
	return func(f *FS) {
		f.perm = perm
	}
}

// New creates a new resolver on fs.
func New(fs billy.Filesystem, opts ...Option) *FS {
	f := &FS{fs: fs, perm: 0o644}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewOS creates a new resolver on the host filesystem rooted at root.
func NewOS(root string, opts ...Option) *FS {
	return New(osfs.New(root), opts...)
}

// URI returns the file:// URI of name.
func URI(name string) string {
	return (&url.URL{Scheme: Scheme, Path: path.Join("/", name)}).String()
}

func filePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrInvalidURI, err)
	}
	if u.Scheme != Scheme {
		return "", fmt.Errorf("%w: not a %s URI: %s", content.ErrInvalidURI, Scheme, uri)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote host: %s", content.ErrInvalidURI, u.Host)
	}
	if u.Path == "" {
		return "", fmt.Errorf("%w: empty path", content.ErrInvalidURI)
	}
	return path.Clean(u.Path), nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", content.ErrNotFound, err)
	}
	return err
}

// OpenReader opens the file at uri.
func (f *FS) OpenReader(_ context.Context, uri string) (io.ReadCloser, error) {
	p, err := filePath(uri)
	if err != nil {
		return nil, err
	}
	fi, err := f.fs.Stat(p)
	if err != nil {
		return nil, notFound(err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: is a directory: %s", content.ErrInvalidURI, p)
	}
	file, err := f.fs.Open(p)
	if err != nil {
		return nil, notFound(err)
	}
	return file, nil
}

// OpenWriter creates or truncates the file at uri.
func (f *FS) OpenWriter(_ context.Context, uri string) (io.WriteCloser, error) {
	p, err := filePath(uri)
	if err != nil {
		return nil, err
	}
	if fi, err := f.fs.Stat(p); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%w: is a directory: %s", content.ErrInvalidURI, p)
	}
	return f.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.perm)
}

// List returns the regular files directly inside the directory at uri.
func (f *FS) List(_ context.Context, uri string) ([]string, error) {
	p, err := filePath(uri)
	if err != nil {
		return nil, err
	}
	infos, err := f.fs.ReadDir(p)
	if err != nil {
		return nil, notFound(err)
	}
	var ret []string
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		ret = append(ret, URI(path.Join(p, fi.Name())))
	}
	sort.Strings(ret)
	return ret, nil
}
