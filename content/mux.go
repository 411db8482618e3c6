package content

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Mux dispatches to resolvers by URI scheme.
type Mux struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewMux creates a new, empty, Mux.
func NewMux() *Mux {
	return &Mux{resolvers: make(map[string]Resolver)}
}

// Handle registers r for URI scheme.
// Registering the same scheme again replaces the prior resolver.
func (m *Mux) Handle(scheme string, r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[strings.ToLower(scheme)] = r
}

// Schemes returns the sorted registered schemes.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]string, 0, len(m.resolvers))
	for k := range m.resolvers {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Scheme returns the lower-cased scheme of uri.
func Scheme(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: no scheme: %s", ErrInvalidURI, uri)
	}
	return strings.ToLower(u.Scheme), nil
}

func (m *Mux) resolver(uri string) (Resolver, error) {
	scheme, err := Scheme(uri)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resolvers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return r, nil
}

// OpenReader dispatches to the resolver for the scheme of uri.
func (m *Mux) OpenReader(ctx context.Context, uri string) (io.ReadCloser, error) {
	r, err := m.resolver(uri)
	if err != nil {
		return nil, err
	}
	return r.OpenReader(ctx, uri)
}

// OpenWriter dispatches to the resolver for the scheme of uri.
func (m *Mux) OpenWriter(ctx context.Context, uri string) (io.WriteCloser, error) {
	r, err := m.resolver(uri)
	if err != nil {
		return nil, err
	}
	return r.OpenWriter(ctx, uri)
}

// List dispatches to the resolver for the scheme of uri if it is a Lister.
func (m *Mux) List(ctx context.Context, uri string) ([]string, error) {
	r, err := m.resolver(uri)
	if err != nil {
		return nil, err
	}
	l, ok := r.(Lister)
	if !ok {
		scheme, _ := Scheme(uri)
		return nil, fmt.Errorf("%w: %s resolver cannot list", ErrUnsupportedScheme, scheme)
	}
	return l.List(ctx, uri)
}
