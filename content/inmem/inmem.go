// Package inmem implements an in-memory content:// resolver.
package inmem

import (
	"github.com/accelf/driveshare/content/kv"

	"github.com/micromdm/nanolib/storage/kv/kvmap"
)

// InMem is an in-memory content resolver.
type InMem struct {
	*kv.KV
}

func New(authority string) *InMem {
	return &InMem{KV: kv.New(kvmap.New(), authority)}
}
