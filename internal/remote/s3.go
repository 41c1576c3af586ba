package remote

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const presignExpiry = 15 * time.Minute

type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver handles s3://bucket/key links. Transfers go through a presigned
// HTTPS URL, so the session code only ever speaks plain HTTP.
type S3Resolver struct {
	profile string

	mu        sync.Mutex
	api       s3API
	presigner s3Presigner
}

func NewS3Resolver(profile string) *S3Resolver {
	return &S3Resolver{profile: profile}
}

// NewS3ResolverFromClient uses an already configured client.
func NewS3ResolverFromClient(client *s3.Client) *S3Resolver {
	return &S3Resolver{api: client, presigner: s3.NewPresignClient(client)}
}

func (r *S3Resolver) clients(ctx context.Context) (s3API, s3Presigner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.api != nil {
		return r.api, r.presigner, nil
	}
	var opts []func(*config.LoadOptions) error
	if r.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(r.profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	r.api = client
	r.presigner = s3.NewPresignClient(client)
	return r.api, r.presigner, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, link string) (Descriptor, error) {
	bucket, key, err := ParseS3Link(link)
	if err != nil {
		return Descriptor{}, err
	}
	api, _, err := r.clients(ctx)
	if err != nil {
		return Descriptor{}, err
	}
	headObj, err := api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("error accessing S3 object: %w", err)
	}
	if headObj.ContentLength == nil || *headObj.ContentLength < 0 {
		return Descriptor{}, ErrUnknownLength
	}
	log.Debug().Str("op", "remote/s3").Msgf("Resolved s3://%s/%s (%d bytes)", bucket, key, *headObj.ContentLength)
	return Descriptor{
		Link:          link,
		Filename:      sanitizeFilename(path.Base(key)),
		ContentLength: uint64(*headObj.ContentLength),
		RangeSupport:  true,
	}, nil
}

// Endpoint presigns a fresh GET on every call so resumed sessions never
// reuse an expired URL.
func (r *S3Resolver) Endpoint(ctx context.Context, d Descriptor) (string, error) {
	bucket, key, err := ParseS3Link(d.Link)
	if err != nil {
		return "", err
	}
	_, presigner, err := r.clients(ctx)
	if err != nil {
		return "", err
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("error presigning S3 object: %w", err)
	}
	return req.URL, nil
}

func ParseS3Link(link string) (string, string, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 link: %w", err)
	}
	if parsedURL.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsedURL.Scheme)
	}
	bucket := parsedURL.Host
	key := strings.TrimPrefix(parsedURL.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid S3 link %q: expected s3://bucket/key", link)
	}
	return bucket, key, nil
}
