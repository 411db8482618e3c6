// Package test provides a conformance suite for content resolvers.
package test

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/accelf/driveshare/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Payload returns n deterministic pseudo-random bytes.
func Payload(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

// Put writes b to uri using r.
func Put(t *testing.T, r content.Resolver, uri string, b []byte) {
	t.Helper()
	w, err := r.OpenWriter(context.Background(), uri)
	require.NoError(t, err)
	_, err = w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// Get reads all of uri using r.
func Get(t *testing.T, r content.Resolver, uri string) []byte {
	t.Helper()
	rc, err := r.OpenReader(context.Background(), uri)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

// TestResolver runs the resolver conformance suite against r.
// The uri func maps a short resource name to a URI r handles.
// If container is not empty and r is a content.Lister then listing
// is tested against it; uri names must then resolve inside container.
func TestResolver(t *testing.T, r content.Resolver, uri func(name string) string, container string) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			size int
		}{
			{"empty", 0},
			{"one byte", 1},
			{"small", 4096},
			{"multi-chunk", 3<<20 + 17},
		} {
			t.Run(tc.name, func(t *testing.T) {
				want := Payload(tc.size)
				u := uri("rt-" + tc.name)
				Put(t, r, u, want)
				have := Get(t, r, u)
				assert.True(t, bytes.Equal(want, have), "content mismatch: have %d bytes, want %d", len(have), len(want))
			})
		}
	})

	t.Run("truncates", func(t *testing.T) {
		u := uri("truncate")
		Put(t, r, u, bytes.Repeat([]byte("long existing content "), 64))
		Put(t, r, u, []byte("short"))
		assert.Equal(t, []byte("short"), Get(t, r, u))

		Put(t, r, u, nil)
		assert.Empty(t, Get(t, r, u))
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := r.OpenReader(ctx, uri("does-not-exist"))
		require.Error(t, err)
		assert.ErrorIs(t, err, content.ErrNotFound)
	})

	t.Run("copy", func(t *testing.T) {
		src, dst := uri("copy-src"), uri("copy-dst")
		want := Payload(70000)
		Put(t, r, src, want)
		Put(t, r, dst, Payload(90000))

		n, err := content.Copy(ctx, r, src, dst)
		require.NoError(t, err)
		assert.EqualValues(t, len(want), n)
		assert.Equal(t, want, Get(t, r, dst))
		assert.Equal(t, want, Get(t, r, src), "source modified")
	})

	t.Run("copy missing source", func(t *testing.T) {
		_, err := content.Copy(ctx, r, uri("copy-missing"), uri("copy-missing-dst"))
		assert.ErrorIs(t, err, content.ErrResourceUnavailable)
	})

	l, ok := r.(content.Lister)
	if container == "" || !ok {
		return
	}

	t.Run("list", func(t *testing.T) {
		names := []string{"list-b", "list-a", "list-c"}
		for _, name := range names {
			Put(t, r, uri(name), []byte(name))
		}
		uris, err := l.List(ctx, container)
		require.NoError(t, err)
		for _, name := range names {
			assert.Contains(t, uris, uri(name))
		}
		assert.IsNonDecreasing(t, uris)
	})
}
