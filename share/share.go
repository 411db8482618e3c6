// Package share defines inbound share requests.
package share

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingMetadata indicates an inbound share lacked its media type or
// its source reference. Nothing useful can be presented without both.
var ErrMissingMetadata = errors.New("missing share metadata")

const (
	// PlaceholderFileName is displayed when the source has no path segment.
	PlaceholderFileName = "New file"

	// PlaceholderURI is displayed when the source reference is empty.
	PlaceholderURI = "Empty"
)

// Intent is an inbound share as delivered by the host.
// Any field may be missing; see FromIntent.
type Intent struct {
	// Type is the declared media type of the shared content.
	Type string `json:"type"`

	// Stream is the opaque URI of the shared content.
	Stream string `json:"stream"`

	// Text is optional free text shared alongside the stream.
	// It is carried for logging and otherwise ignored.
	Text string `json:"text,omitempty"`
}

// Request is a validated share request.
// It is created once and never mutated.
type Request struct {
	MediaType string `json:"media_type"`
	Source    string `json:"source"`
}

// New creates a new Request and validates it.
func New(mediaType, source string) (Request, error) {
	r := Request{
		MediaType: strings.TrimSpace(mediaType),
		Source:    strings.TrimSpace(source),
	}
	return r, r.Validate()
}

// FromIntent converts an inbound intent into a Request.
func FromIntent(i *Intent) (Request, error) {
	if i == nil {
		return Request{}, fmt.Errorf("%w: no intent", ErrMissingMetadata)
	}
	return New(i.Type, i.Stream)
}

// Validate returns ErrMissingMetadata if r lacks either field.
func (r Request) Validate() error {
	if r.MediaType == "" {
		return fmt.Errorf("%w: no mimetype provided", ErrMissingMetadata)
	}
	if r.Source == "" {
		return fmt.Errorf("%w: no file provided", ErrMissingMetadata)
	}
	return nil
}

// FileName returns the last path segment of the source URI.
// An empty string is returned if there is none.
func (r Request) FileName() string {
	return LastPathSegment(r.Source)
}

// DisplayFileName is like FileName but substitutes PlaceholderFileName.
func (r Request) DisplayFileName() string {
	if name := r.FileName(); name != "" {
		return name
	}
	return PlaceholderFileName
}

// DisplaySource returns the source URI or PlaceholderURI.
func (r Request) DisplaySource() string {
	if r.Source == "" {
		return PlaceholderURI
	}
	return r.Source
}

// LastPathSegment returns the last non-empty segment of the path of uri,
// split before unescaping so encoded slashes stay within a segment.
// Opaque URIs (e.g. "mailto:x") have no path segments.
func LastPathSegment(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	segs := strings.Split(u.EscapedPath(), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == "" {
			continue
		}
		seg, err := url.PathUnescape(segs[i])
		if err != nil {
			return segs[i]
		}
		return seg
	}
	return ""
}
