// Package mysql implements a content:// resolver storing content in MySQL.
package mysql

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/content/kv"
)

// Schema contains the MySQL schema for the content storage.
//
//go:embed schema.sql
var Schema string

// MySQLStorage resolves content URIs to rows of the content table.
type MySQLStorage struct {
	db        *sql.DB
	authority string
}

type config struct {
	driver    string
	dsn       string
	db        *sql.DB
	authority string
}

// Option allows configuring a MySQLStorage.
type Option func(*config)

// WithDSN sets the storage MySQL data source name.
func WithDSN(dsn string) Option {
	return func(c *config) {
		c.dsn = dsn
	}
}

// WithDriver sets a custom MySQL driver for the storage.
//
// Default driver is "mysql".
// Value is ignored if WithDB is used.
func WithDriver(driver string) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// WithDB sets a custom MySQL *sql.DB to the storage.
//
// If set, driver passed via WithDriver is ignored.
func WithDB(db *sql.DB) Option {
	return func(c *config) {
		c.db = db
	}
}

// WithAuthority sets the content URI authority served.
func WithAuthority(authority string) Option {
	return func(c *config) {
		c.authority = authority
	}
}

// New creates and returns a new MySQLStorage.
func New(opts ...Option) (*MySQLStorage, error) {
	cfg := &config{driver: "mysql", authority: kv.DefaultAuthority}
	for _, opt := range opts {
		opt(cfg)
	}
	var err error
	if cfg.db == nil {
		cfg.db, err = sql.Open(cfg.driver, cfg.dsn)
		if err != nil {
			return nil, err
		}
	}
	if err = cfg.db.Ping(); err != nil {
		return nil, err
	}
	return &MySQLStorage{db: cfg.db, authority: cfg.authority}, nil
}

// URI returns the content URI of name.
func (s *MySQLStorage) URI(name string) string {
	return kv.URI(s.authority, name)
}

// OpenReader reads the content at uri into memory and returns a reader over it.
func (s *MySQLStorage) OpenReader(ctx context.Context, uri string) (io.ReadCloser, error) {
	name, err := kv.ResourceName(s.authority, uri)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(
		ctx,
		`SELECT data FROM content WHERE authority = ? AND name = ?;`,
		s.authority, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrNotFound, uri)
	} else if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MySQLStorage) store(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(
		ctx, `
INSERT INTO content
	(authority, name, data)
VALUES
	(?, ?, ?) as new
ON DUPLICATE KEY UPDATE
	data = new.data;`,
		s.authority,
		name,
		data,
	)
	return err
}

type writer struct {
	ctx    context.Context
	s      *MySQLStorage
	name   string
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
	return w.s.store(w.ctx, w.name, w.buf.Bytes())
}

// OpenWriter truncates the content at uri and returns a writer whose
// content is stored on Close.
func (s *MySQLStorage) OpenWriter(ctx context.Context, uri string) (io.WriteCloser, error) {
	name, err := kv.ResourceName(s.authority, uri)
	if err != nil {
		return nil, err
	}
	if err = s.store(ctx, name, nil); err != nil {
		return nil, fmt.Errorf("truncating: %w", err)
	}
	return &writer{ctx: ctx, s: s, name: name}, nil
}

// escapeLike escapes the LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns the URIs of all content whose name starts with the path of uri.
func (s *MySQLStorage) List(ctx context.Context, uri string) ([]string, error) {
	prefix, err := kv.Name(s.authority, uri)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name FROM content WHERE authority = ? AND name LIKE ? ORDER BY name;`,
		s.authority, escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ret []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		ret = append(ret, s.URI(name))
	}
	return ret, rows.Err()
}
