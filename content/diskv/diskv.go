// Package diskv implements a content:// resolver using the diskv key-value store.
package diskv

import (
	"path/filepath"

	"github.com/accelf/driveshare/content/kv"

	"github.com/micromdm/nanolib/storage/kv/kvdiskv"
	"github.com/peterbourgon/diskv/v3"
)

// Diskv is a diskv-backed content resolver.
type Diskv struct {
	*kv.KV
}

// New creates a new resolver storing content in the "content" directory of path.
func New(path, authority string) *Diskv {
	return &Diskv{
		KV: kv.New(kvdiskv.New(diskv.New(diskv.Options{
			BasePath:     filepath.Join(path, "content"),
			Transform:    kvdiskv.FlatTransform,
			CacheSizeMax: 1024 * 1024,
		})), authority),
	}
}
