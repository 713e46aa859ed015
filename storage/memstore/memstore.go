package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/storage"
)

var _ storage.ObjectStore = (*Store)(nil)

type object struct {
	body        []byte
	contentType string
}

// Store keeps objects in memory. Used for local runs and tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string

	// FailUploads forces every Upload to fail, for exercising StorageFailure paths
	FailUploads bool
}

func New(baseURL string) *Store {
	return &Store{objects: make(map[string]object), baseURL: baseURL}
}

func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, opts storage.UploadOptions) (storage.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: %v", objectPath, err)
	}
	key := storage.CleanPath(objectPath)

	body, err := io.ReadAll(r)
	if err != nil {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: read body: %v", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s", key)
	}
	if _, exists := s.objects[key]; exists && !opts.Upsert {
		return storage.UploadResult{}, dasherrors.Wrapf(dasherrors.ErrStorage, "upload %s: object already exists", key)
	}
	s.objects[key] = object{body: bytes.Clone(body), contentType: opts.ContentType}
	return storage.UploadResult{Path: key, Size: int64(len(body))}, nil
}

func (s *Store) PublicURL(objectPath string) string {
	return storage.JoinURL(s.baseURL, objectPath)
}

func (s *Store) Remove(ctx context.Context, objectPaths ...string) error {
	if err := ctx.Err(); err != nil {
		return dasherrors.Wrapf(dasherrors.ErrStorage, "remove: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range objectPaths {
		delete(s.objects, storage.CleanPath(p))
	}
	return nil
}

// Get returns the stored bytes and content type
func (s *Store) Get(objectPath string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[storage.CleanPath(objectPath)]
	if !ok {
		return nil, "", fmt.Errorf("%s: %w", objectPath, dasherrors.ErrObjectNotFound)
	}
	return bytes.Clone(o.body), o.contentType, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
