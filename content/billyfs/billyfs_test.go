package billyfs

import (
	"context"
	"testing"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/content/test"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFS(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/share", 0o755))
	test.TestResolver(t, New(fs), func(name string) string {
		return URI("/share/" + name)
	}, URI("/share"))
}

func TestOSFS(t *testing.T) {
	dir := t.TempDir()
	test.TestResolver(t, NewOS(dir), func(name string) string {
		return URI("/docs/" + name)
	}, URI("/docs"))
}

func TestURI(t *testing.T) {
	assert.Equal(t, "file:///a/b%20c.txt", URI("a/b c.txt"))

	p, err := filePath("file:///a/b%20c.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a/b c.txt", p)

	p, err = filePath("file://localhost/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", p)

	for _, bad := range []string{"s3://bucket/key", "file://remote/x", "file:", "%zz"} {
		_, err := filePath(bad)
		assert.ErrorIs(t, err, content.ErrInvalidURI, bad)
	}
}

func TestDirectoryIsNotAResource(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	f := New(fs)

	_, err := f.OpenWriter(context.Background(), URI("/dir"))
	assert.ErrorIs(t, err, content.ErrInvalidURI)

	_, err = f.OpenReader(context.Background(), URI("/dir"))
	assert.ErrorIs(t, err, content.ErrInvalidURI)

	_, err = content.Copy(context.Background(), f, URI("/dir"), URI("/out"))
	assert.ErrorIs(t, err, content.ErrResourceUnavailable)
}
