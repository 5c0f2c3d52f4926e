// Package gcs reads and writes batch files on Google Cloud Storage. It
// assumes Application Default Credentials are configured (gcloud auth
// application-default login).
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// IsURI reports whether source names a GCS object.
func IsURI(source string) bool {
	return strings.HasPrefix(source, "gs://")
}

// SplitURI splits "gs://bucket/path/to/object" into bucket and object name.
func SplitURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI %q", uri)
	}
	return parts[0], parts[1], nil
}

// objectReader closes the storage client together with the object reader so
// callers hold a single io.ReadCloser.
type objectReader struct {
	io.Reader
	reader *storage.Reader
	client *storage.Client
}

func (r *objectReader) Close() error {
	rerr := r.reader.Close()
	cerr := r.client.Close()
	if rerr != nil {
		return rerr
	}
	return cerr
}

// Open returns a streaming reader over the object named by a gs:// URI.
// The batch is never buffered whole; the pipeline consumes it row by row.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}

	return &objectReader{Reader: r, reader: r, client: client}, nil
}

// Upload copies r into the object named by a gs:// URI.
func Upload(ctx context.Context, uri string, r io.Reader) error {
	bucket, object, err := SplitURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}
