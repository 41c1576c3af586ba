package remote

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/resumedl/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

const fallbackFilename = "download"

type HTTPResolver struct {
	client utils.HTTPDoer
}

func NewHTTPResolver(client utils.HTTPDoer) *HTTPResolver {
	return &HTTPResolver{client: client}
}

func (r *HTTPResolver) Resolve(ctx context.Context, link string) (Descriptor, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return Descriptor{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return Descriptor{}, fmt.Errorf("invalid URL: missing host in %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Descriptor{}, fmt.Errorf("error checking URL: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		log.Debug().Str("op", "remote/http").Msgf("HEAD not allowed for %s, probing with a ranged GET", link)
		return r.probe(ctx, parsedURL)
	case resp.StatusCode == http.StatusNotFound:
		return Descriptor{}, fmt.Errorf("URL not found (404)")
	case resp.StatusCode >= 400:
		return Descriptor{}, fmt.Errorf("server returned error: %d", resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return Descriptor{}, ErrUnknownLength
	}
	return Descriptor{
		Link:          link,
		Filename:      filenameFor(resp, parsedURL),
		ContentLength: uint64(resp.ContentLength),
		RangeSupport:  strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
	}, nil
}

func (r *HTTPResolver) Endpoint(_ context.Context, d Descriptor) (string, error) {
	return d.Link, nil
}

// probe asks for the first byte; a 206 answer carries the total length in
// Content-Range and proves range support.
func (r *HTTPResolver) probe(ctx context.Context, parsedURL *url.URL) (Descriptor, error) {
	link := parsedURL.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := r.client.Do(req)
	if err != nil {
		return Descriptor{}, fmt.Errorf("error probing URL: %w", err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, io.LimitReader(resp.Body, 1))

	switch resp.StatusCode {
	case http.StatusPartialContent:
		total, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if err != nil {
			return Descriptor{}, err
		}
		return Descriptor{
			Link:          link,
			Filename:      filenameFor(resp, parsedURL),
			ContentLength: total,
			RangeSupport:  true,
		}, nil
	case http.StatusOK:
		if resp.ContentLength < 0 {
			return Descriptor{}, ErrUnknownLength
		}
		return Descriptor{
			Link:          link,
			Filename:      filenameFor(resp, parsedURL),
			ContentLength: uint64(resp.ContentLength),
		}, nil
	default:
		return Descriptor{}, fmt.Errorf("server returned error: %d", resp.StatusCode)
	}
}

func parseContentRangeTotal(contentRange string) (uint64, error) {
	_, total, found := strings.Cut(contentRange, "/")
	if !found || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range header: %q", contentRange)
	}
	size, err := strconv.ParseUint(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range header: %q", contentRange)
	}
	return size, nil
}

func filenameFor(resp *http.Response, parsedURL *url.URL) string {
	if contentDisposition := resp.Header.Get("Content-Disposition"); contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn := sanitizeFilename(params["filename"]); fn != "" {
				return fn
			}
		}
	}
	if fn := sanitizeFilename(path.Base(parsedURL.Path)); fn != "" {
		return fn
	}
	return fallbackFilename
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return filenameRegex.ReplaceAllString(name, "_")
}
