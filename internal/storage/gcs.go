package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const gcsPublicBase = "https://storage.googleapis.com"

// GCSStore stores objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// NewGCSStore creates a store for bucket.
func NewGCSStore(client *gcs.Client, bucket, baseURL string) *GCSStore {
	if baseURL == "" {
		baseURL = gcsPublicBase + "/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: baseURL}
}

func (s *GCSStore) Bucket() string { return s.bucket }

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func (s *GCSStore) Put(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key, localPath string) error {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("gcs get %s: %w", key, err)
	}
	defer r.Close()

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("gcs read %s: %w", key, err)
	}
	return f.Close()
}

func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcs attrs %s: %w", key, err)
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", prefix, err)
		}
		out = append(out, ObjectInfo{Key: attrs.Name, Size: attrs.Size, LastModified: attrs.Updated})
	}
	return out, nil
}

func (s *GCSStore) URI(key string) string {
	return "gs://" + s.bucket + "/" + key
}

func (s *GCSStore) PublicURL(key string) string {
	return joinURL(s.baseURL, key)
}
