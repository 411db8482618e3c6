package content

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a resource is read for content detection.
const sniffLen = 3072

// MatchMediaType reports whether mediaType satisfies pattern.
// Pattern may be "*/*", a "type/*" wildcard or a concrete media type.
// Parameters (e.g. "; charset=utf-8") are ignored.
func MatchMediaType(pattern, mediaType string) bool {
	pattern = baseType(pattern)
	mediaType = baseType(mediaType)
	if pattern == "" || pattern == "*" || pattern == "*/*" {
		return true
	}
	if mediaType == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(mediaType, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == mediaType
}

func baseType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// Compatible reports whether the detected type mt (or any of its
// aliases and parents) satisfies pattern.
func Compatible(pattern string, mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if MatchMediaType(pattern, mt.String()) {
			return true
		}
		if !strings.HasSuffix(baseType(pattern), "*") && mt.Is(baseType(pattern)) {
			return true
		}
	}
	return false
}

// Detect sniffs the media type of the resource at uri.
// The extension of the URI path is consulted when sniffing only yields
// a generic type.
func Detect(ctx context.Context, r Resolver, uri string) (string, error) {
	rc, err := r.OpenReader(ctx, uri)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	mt, err := mimetype.DetectReader(io.LimitReader(rc, sniffLen))
	if err != nil {
		return "", fmt.Errorf("detecting media type: %w", err)
	}
	if mt.Is("application/octet-stream") || mt.Is("text/plain") {
		if byExt := baseType(mime.TypeByExtension(path.Ext(uri))); byExt != "" {
			return byExt, nil
		}
	}
	return mt.String(), nil
}

// DetectCompatible reports whether the resource at uri is compatible with pattern.
func DetectCompatible(ctx context.Context, r Resolver, uri, pattern string) (bool, error) {
	if MatchMediaType(pattern, "") {
		return true, nil
	}
	detected, err := Detect(ctx, r, uri)
	if err != nil {
		return false, err
	}
	if mt := mimetype.Lookup(detected); mt != nil {
		return Compatible(pattern, mt), nil
	}
	return MatchMediaType(pattern, detected), nil
}
