// Package storage assembles content resolvers from configuration.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/content/billyfs"
	"github.com/accelf/driveshare/content/diskv"
	"github.com/accelf/driveshare/content/inmem"
	"github.com/accelf/driveshare/content/kv"
	"github.com/accelf/driveshare/content/mysql"
	"github.com/accelf/driveshare/content/s3"

	_ "github.com/go-sql-driver/mysql"
)

var ErrUnknownStorage = errors.New("unknown storage")

// Store is a content:// backend.
type Store interface {
	content.Resolver
	content.Lister
	URI(name string) string
}

// Config selects and configures content backends.
type Config struct {
	// Storage names the content:// backend: "inmem", "file" (or
	// "diskv") or "mysql".
	Storage string
	// DSN is the diskv path or the MySQL data source name.
	DSN string
	// Authority is the content:// authority served.
	Authority string

	// FileRoot enables file:// URIs rooted at FileRoot if not empty.
	FileRoot string

	// S3 enables s3:// URIs using the default AWS configuration.
	S3          bool
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// NewStore creates the content:// backend named by name.
func NewStore(name, dsn, authority string) (Store, error) {
	if authority == "" {
		authority = kv.DefaultAuthority
	}
	switch name {
	case "inmem":
		return inmem.New(authority), nil
	case "file", "diskv":
		if dsn == "" {
			dsn = "db"
		}
		return diskv.New(dsn, authority), nil
	case "mysql":
		s, err := mysql.New(mysql.WithDSN(dsn), mysql.WithAuthority(authority))
		if err != nil {
			return nil, fmt.Errorf("creating mysql storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStorage, name)
	}
}

// New creates a resolver dispatching on URI scheme to the configured
// backends. The content:// backend is also returned.
func New(ctx context.Context, cfg Config) (*content.Mux, Store, error) {
	store, err := NewStore(cfg.Storage, cfg.DSN, cfg.Authority)
	if err != nil {
		return nil, nil, err
	}
	mux := content.NewMux()
	mux.Handle(kv.Scheme, store)

	if cfg.FileRoot != "" {
		mux.Handle(billyfs.Scheme, billyfs.NewOS(cfg.FileRoot))
	}

	if cfg.S3 {
		s, err := s3.NewFromDefaultConfig(ctx,
			s3.WithRegion(cfg.S3Region),
			s3.WithEndpoint(cfg.S3Endpoint),
			s3.WithPathStyle(cfg.S3PathStyle),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("creating s3 resolver: %w", err)
		}
		mux.Handle(s3.Scheme, s)
	}
	return mux, store, nil
}
