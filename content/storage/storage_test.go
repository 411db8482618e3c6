package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/content/billyfs"
	"github.com/accelf/driveshare/content/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	for _, name := range []string{"inmem", "file", "diskv"} {
		t.Run(name, func(t *testing.T) {
			s, err := NewStore(name, t.TempDir(), "")
			require.NoError(t, err)
			assert.Equal(t, "content://driveshare/a.txt", s.URI("a.txt"))
			test.Put(t, s, s.URI("a.txt"), []byte("a"))
			assert.Equal(t, []byte("a"), test.Get(t, s, s.URI("a.txt")))
		})
	}

	_, err := NewStore("s3", "", "")
	assert.ErrorIs(t, err, ErrUnknownStorage)
}

func TestNew(t *testing.T) {
	root := t.TempDir()
	mux, store, err := New(context.Background(), Config{
		Storage:   "diskv",
		DSN:       filepath.Join(t.TempDir(), "db"),
		Authority: "shares",
		FileRoot:  root,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"content", "file"}, mux.Schemes())

	test.Put(t, mux, billyfs.URI("notes.txt"), []byte("notes"))
	_, err = content.Copy(context.Background(), mux, billyfs.URI("notes.txt"), store.URI("notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("notes"), test.Get(t, mux, "content://shares/notes.txt"))

	_, err = mux.OpenReader(context.Background(), "s3://bucket/notes.txt")
	assert.ErrorIs(t, err, content.ErrUnsupportedScheme)
}
