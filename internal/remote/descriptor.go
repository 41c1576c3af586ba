// Package remote resolves links into the facts a download needs: the file
// name, the total length and whether the server honours byte ranges.
package remote

import (
	"context"
	"errors"
)

// Descriptor is what a link resolved to.
type Descriptor struct {
	Link          string
	Filename      string
	ContentLength uint64
	RangeSupport  bool
}

// Resolver turns links into descriptors and descriptors into fetchable URLs.
type Resolver interface {
	Resolve(ctx context.Context, link string) (Descriptor, error)
	// Endpoint returns the URL to GET for d. It may differ from d.Link, e.g.
	// a presigned URL for object storage links.
	Endpoint(ctx context.Context, d Descriptor) (string, error)
}

var (
	ErrUnsupportedScheme = errors.New("unsupported link scheme")
	ErrUnknownLength     = errors.New("server did not report a content length")
)
