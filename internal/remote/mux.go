package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tanq16/resumedl/internal/utils"
)

// Mux picks a resolver by link scheme.
type Mux struct {
	resolvers map[string]Resolver
}

func NewMux(client utils.HTTPDoer, s3Profile string) *Mux {
	httpResolver := NewHTTPResolver(client)
	return &Mux{resolvers: map[string]Resolver{
		"http":  httpResolver,
		"https": httpResolver,
		"s3":    NewS3Resolver(s3Profile),
	}}
}

// Handle registers r for scheme, replacing any previous resolver.
func (m *Mux) Handle(scheme string, r Resolver) {
	m.resolvers[scheme] = r
}

func (m *Mux) Resolve(ctx context.Context, link string) (Descriptor, error) {
	r, err := m.pick(link)
	if err != nil {
		return Descriptor{}, err
	}
	return r.Resolve(ctx, link)
}

func (m *Mux) Endpoint(ctx context.Context, d Descriptor) (string, error) {
	r, err := m.pick(d.Link)
	if err != nil {
		return "", err
	}
	return r.Endpoint(ctx, d)
}

func (m *Mux) pick(link string) (Resolver, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	r, ok := m.resolvers[parsedURL.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsedURL.Scheme)
	}
	return r, nil
}
