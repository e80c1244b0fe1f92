// Package storage is the object store gateway: put, get, delete and public
// URLs for audio artifacts, with S3, GCS and in-memory backends.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key prefixes for the persisted object layout.
const (
	PrefixInput         = "audio/"
	PrefixOutput        = "audio/output/"
	PrefixNotifications = "audio/notifications/"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidLocator is returned when a storage URI cannot be parsed.
	ErrInvalidLocator = errors.New("invalid storage locator")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	// Bucket returns the bucket this store writes to.
	Bucket() string
	// Put uploads the file at localPath under key.
	Put(ctx context.Context, key, localPath, contentType string) error
	// Get downloads key into localPath.
	Get(ctx context.Context, key, localPath string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// URI returns the storage-native address of key (s3://, gs://).
	URI(key string) string
	// PublicURL returns the HTTPS address clients fetch key from.
	PublicURL(key string) string
}

// NewKey returns a fresh key under prefix with the given extension.
func NewKey(prefix, ext string) string {
	return prefix + uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
