package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Locator is a bucket/key pair resolved from a storage URI.
type Locator struct {
	Scheme string // s3 or gs
	Bucket string
	Key    string
}

// String renders the locator in storage-native form.
func (l Locator) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseLocator resolves a storage URI to its bucket and key. Accepted forms:
//
//	s3://bucket/key
//	gs://bucket/key
//	https://s3.<region>.amazonaws.com/bucket/key       (path style)
//	https://bucket.s3.<region>.amazonaws.com/key       (virtual hosted)
//	https://storage.googleapis.com/bucket/key
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("%w: empty uri", ErrInvalidLocator)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "s3", "gs":
		return native(strings.ToLower(u.Scheme), u)
	case "https", "http":
		return hosted(u)
	default:
		return Locator{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, u.Scheme)
	}
}

func native(scheme string, u *url.URL) (Locator, error) {
	if u.Host == "" {
		return Locator{}, fmt.Errorf("%w: missing bucket in %s uri", ErrInvalidLocator, scheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return Locator{}, fmt.Errorf("%w: missing key in %s uri", ErrInvalidLocator, scheme)
	}
	return Locator{Scheme: scheme, Bucket: u.Host, Key: key}, nil
}

func hosted(u *url.URL) (Locator, error) {
	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	switch {
	case host == "storage.googleapis.com":
		return splitPath("gs", path)
	case isS3Endpoint(host):
		return splitPath("s3", path)
	case strings.HasSuffix(host, ".amazonaws.com"):
		// Bucket names may themselves contain ".s3", so split at the
		// last endpoint marker.
		i := max(strings.LastIndex(host, ".s3."), strings.LastIndex(host, ".s3-"))
		if i <= 0 || !isS3Endpoint(host[i+1:]) {
			return Locator{}, fmt.Errorf("%w: unrecognized host %q", ErrInvalidLocator, host)
		}
		if path == "" {
			return Locator{}, fmt.Errorf("%w: missing key", ErrInvalidLocator)
		}
		return Locator{Scheme: "s3", Bucket: host[:i], Key: path}, nil
	default:
		return Locator{}, fmt.Errorf("%w: unrecognized host %q", ErrInvalidLocator, host)
	}
}

// isS3Endpoint reports whether host is a bare S3 endpoint such as
// s3.amazonaws.com, s3.ap-southeast-2.amazonaws.com or the legacy
// s3-ap-southeast-2.amazonaws.com.
func isS3Endpoint(host string) bool {
	if !strings.HasSuffix(host, ".amazonaws.com") {
		return false
	}
	return host == "s3.amazonaws.com" ||
		strings.HasPrefix(host, "s3.") ||
		strings.HasPrefix(host, "s3-")
}

func splitPath(scheme, path string) (Locator, error) {
	bucket, key, _ := strings.Cut(path, "/")
	if bucket == "" {
		return Locator{}, fmt.Errorf("%w: missing bucket", ErrInvalidLocator)
	}
	if key == "" {
		return Locator{}, fmt.Errorf("%w: missing key", ErrInvalidLocator)
	}
	return Locator{Scheme: scheme, Bucket: bucket, Key: key}, nil
}
