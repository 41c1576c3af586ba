package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/resumedl/internal/utils"
)

type stubResolver struct {
	name string
}

func (s stubResolver) Resolve(_ context.Context, link string) (Descriptor, error) {
	return Descriptor{Link: link, Filename: s.name}, nil
}

func (s stubResolver) Endpoint(_ context.Context, d Descriptor) (string, error) {
	return s.name + ":" + d.Link, nil
}

func TestMuxDispatch(t *testing.T) {
	mux := NewMux(utils.NewHTTPClient(utils.HTTPClientConfig{}), "")
	mux.Handle("https", stubResolver{name: "web"})
	mux.Handle("s3", stubResolver{name: "bucket"})

	d, err := mux.Resolve(context.Background(), "https://example.com/a.bin")
	require.NoError(t, err)
	assert.Equal(t, "web", d.Filename)

	d, err = mux.Resolve(context.Background(), "s3://b/k")
	require.NoError(t, err)
	assert.Equal(t, "bucket", d.Filename)

	endpoint, err := mux.Endpoint(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "bucket:s3://b/k", endpoint)

	_, err = mux.Resolve(context.Background(), "gopher://example.com/x")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}
