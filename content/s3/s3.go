// Package s3 implements an s3:// content resolver using the AWS SDK.
package s3

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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// Scheme is the URI scheme handled by S3.
const Scheme = "s3"

// API is the subset of the S3 client used.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 resolves s3://bucket/key URIs to objects.
type S3 struct {
	client API
}

// New creates a new resolver using client.
func New(client API) *S3 {
	return &S3{client: client}
}

type config struct {
	region    string
	endpoint  string
	pathStyle bool
}

// Option configures NewFromDefaultConfig.
type Option func(*config)

// WithRegion overrides the region of the default AWS configuration.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

// WithEndpoint sets a custom endpoint URL, e.g. for S3-compatible servers.
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.endpoint = endpoint
	}
}

// WithPathStyle enables path-style bucket addressing.
func WithPathStyle(pathStyle bool) Option {
	return func(c *config) {
		c.pathStyle = pathStyle
	}
}

// NewFromDefaultConfig creates a resolver from the default AWS credential chain.
func NewFromDefaultConfig(ctx context.Context, opts ...Option) (*S3, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.pathStyle
		if cfg.endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.endpoint)
		}
	})
	return New(client), nil
}

// URI returns the s3:// URI of key in bucket.
func URI(bucket, key string) string {
	return (&url.URL{Scheme: Scheme, Host: bucket, Path: "/" + strings.TrimPrefix(key, "/")}).String()
}

// parse returns the bucket and key of uri.
func parse(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", content.ErrInvalidURI, err)
	}
	if u.Scheme != Scheme {
		return "", "", fmt.Errorf("%w: not an %s URI: %s", content.ErrInvalidURI, Scheme, uri)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w: no bucket: %s", content.ErrInvalidURI, uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func parseObject(uri string) (bucket, key string, err error) {
	bucket, key, err = parse(uri)
	if err == nil && key == "" {
		err = fmt.Errorf("%w: no key: %s", content.ErrInvalidURI, uri)
	}
	return
}

// OpenReader returns the body of the object at uri.
func (s *S3) OpenReader(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseObject(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, fmt.Errorf("%w: %s: %v", content.ErrNotFound, uri, err)
	} else if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *S3) put(ctx context.Context, bucket, key string, b []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String(mimetype.Detect(b).String()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// writer buffers the object and uploads it on Close.
type writer struct {
	ctx         context.Context
	s           *S3
	bucket, key string
	buf         bytes.Buffer
	closed      bool
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
	return w.s.put(w.ctx, w.bucket, w.key, w.buf.Bytes())
}

// OpenWriter replaces the object at uri with an empty object and
// returns a writer that uploads the full content on Close.
func (s *S3) OpenWriter(ctx context.Context, uri string) (io.WriteCloser, error) {
	bucket, key, err := parseObject(uri)
	if err != nil {
		return nil, err
	}
	if err = s.put(ctx, bucket, key, nil); err != nil {
		return nil, fmt.Errorf("truncating: %w", err)
	}
	return &writer{ctx: ctx, s: s, bucket: bucket, key: key}, nil
}

// List returns the URIs of the objects whose keys start with the key of uri.
func (s *S3) List(ctx context.Context, uri string) ([]string, error) {
	bucket, prefix, err := parse(uri)
	if err != nil {
		return nil, err
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	var ret []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			ret = append(ret, URI(bucket, *obj.Key))
		}
	}
	sort.Strings(ret)
	return ret, nil
}
