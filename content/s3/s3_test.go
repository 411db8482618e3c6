package s3

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/accelf/driveshare/content"
	"github.com/accelf/driveshare/content/test"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory single-bucket object store.
type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string][]byte
	types       map[string]string
	pageSize    int
	listedPages int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string), pageSize: 2}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(b)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	f.types[*in.Bucket+"/"+*in.Key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedPages++
	var keys []string
	for k := range f.objects {
		bucket, key, _ := strings.Cut(k, "/")
		if bucket == *in.Bucket && strings.HasPrefix(key, aws.ToString(in.Prefix)) && key > aws.ToString(in.ContinuationToken) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3(t *testing.T) {
	test.TestResolver(t, New(newFakeS3()), func(name string) string {
		return URI("bucket", "share/"+name)
	}, URI("bucket", "share/"))
}

func TestParse(t *testing.T) {
	bucket, key, err := parseObject("s3://photos/2024/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "photos", bucket)
	assert.Equal(t, "2024/cat.png", key)

	for _, bad := range []string{"s3:///key", "s3://bucket", "s3://bucket/", "file:///x"} {
		_, _, err := parseObject(bad)
		assert.ErrorIs(t, err, content.ErrInvalidURI, bad)
	}
}

func TestContentTypeDetected(t *testing.T) {
	f := newFakeS3()
	s := New(f)
	test.Put(t, s, URI("b", "doc.pdf"), []byte("%PDF-1.7\n%...."))
	assert.Equal(t, "application/pdf", f.types["b/doc.pdf"])
}

func TestListPaginates(t *testing.T) {
	f := newFakeS3()
	s := New(f)
	for _, k := range []string{"a/1", "a/2", "a/3", "a/dir/", "b/1"} {
		test.Put(t, s, URI("b", k), nil)
	}
	f.listedPages = 0
	uris, err := s.List(context.Background(), URI("b", "a/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://b/a/1", "s3://b/a/2", "s3://b/a/3"}, uris)
	assert.Greater(t, f.listedPages, 1)
}
