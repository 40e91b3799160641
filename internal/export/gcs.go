package export

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// GCSSink uploads exported files to Google Cloud Storage.
// It assumes Application Default Credentials unless options say otherwise.
type GCSSink struct {
	client *storage.Client
	bucket string
}

// NewGCSSink creates a sink writing into bucket.
func NewGCSSink(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCSSink: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSSink: create storage client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

// Bucket returns the destination bucket name.
func (s *GCSSink) Bucket() string {
	return s.bucket
}

// Upload streams r into objectName and returns the gs:// URI of the object.
func (s *GCSSink) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return GCSURI(s.bucket, objectName), nil
}

// GCSURI formats a gs:// URI.
func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ObjectName places fileName under prefix, e.g. "exports/2024/stmt.xlsx".
func ObjectName(prefix, fileName string) string {
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}
