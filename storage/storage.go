// Package storage is the object storage contract used for profile avatars and other
// user uploads.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// UploadOptions mirror the hosted backend's upload flags
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Upsert       bool // overwrite an existing object instead of failing
}

type UploadResult struct {
	Path string
	Size int64
}

// ObjectStore uploads, addresses and removes objects in a single bucket.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, opts UploadOptions) (UploadResult, error)
	PublicURL(objectPath string) string
	Remove(ctx context.Context, objectPaths ...string) error
}

// CleanPath normalises an object path: forward slashes, no leading slash, no "..".
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// JoinURL joins a public base URL and an object path with exactly one slash
func JoinURL(base, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + CleanPath(objectPath)
}
