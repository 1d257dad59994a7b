package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	ErrUnsupportedImageRef = errors.New("unsupported image reference")
	ErrImageTooLarge       = errors.New("image too large")
)

type Image struct {
	Data     []byte
	MimeType string
}

type ImageSource interface {
	Load(ctx context.Context, ref string) (*Image, error)
}

// ImageLoader reads item photos from Cloud Storage (gs://bucket/object) or plain http(s) URLs.
type ImageLoader struct {
	gcs      *storage.Client
	http     *http.Client
	maxBytes int64
}

// NewStorageClient opens a Cloud Storage client, using credentialsFile when set and ADC otherwise.
func NewStorageClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return storage.NewClient(ctx, opts...)
}

func NewImageLoader(gcs *storage.Client, httpClient *http.Client, maxBytes int64) *ImageLoader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 8 << 20
	}
	return &ImageLoader{gcs: gcs, http: httpClient, maxBytes: maxBytes}
}

func (l *ImageLoader) Load(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "gs://"):
		return l.loadGCS(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.loadHTTP(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImageRef, truncate(ref, 32))
	}
}

func (l *ImageLoader) loadGCS(ctx context.Context, ref string) (*Image, error) {
	if l.gcs == nil {
		return nil, fmt.Errorf("%w: storage client not configured", ErrUnsupportedImageRef)
	}
	bucket, object, err := ParseGSRef(ref)
	if err != nil {
		return nil, err
	}
	r, err := l.gcs.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer r.Close()
	data, err := l.readLimited(r)
	if err != nil {
		return nil, err
	}
	return newImage(data, r.Attrs.ContentType)
}

func (l *ImageLoader) loadHTTP(ctx context.Context, ref string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return newImage(data, resp.Header.Get("Content-Type"))
}

func (l *ImageLoader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func newImage(data []byte, contentType string) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	mimeType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: content type %s", ErrUnsupportedImageRef, mimeType)
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}

// ParseGSRef splits gs://bucket/path/to/object.
func ParseGSRef(ref string) (string, string, error) {
	rest := strings.TrimPrefix(ref, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedImageRef, ref)
	}
	return bucket, object, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
