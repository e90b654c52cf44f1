// Package blobstore provides audio blob storage for the visit companion
// platform. Objects are keyed by "{owner_id}/{recording_id}.mp3" so that a
// recording's audio can be located from its row alone. It defines the Store
// interface and a thread-safe in-memory implementation suitable for testing
// and development.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingKey         = errors.New("object key is required")
)

// MaxFileSize is the maximum allowed audio blob size in bytes (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// AllowedContentTypes lists accepted audio MIME types. Conversion always
// stores audio/mpeg; the other entries cover raw uploads kept for debugging.
var AllowedContentTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/ogg":   true,
}

// ObjectInfo describes a stored audio blob.
type ObjectInfo struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store defines the contract for audio blob storage backends.
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader) (*ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) ([]*ObjectInfo, error)
}

type storedBlob struct {
	info    ObjectInfo
	content []byte
}

// InMemoryStore is a thread-safe, in-memory Store for testing/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		blobs: make(map[string]*storedBlob),
	}
}

// Put validates inputs, reads the content, computes a SHA-256 hash, and
// stores the blob under key. An existing object at the same key is replaced,
// which is what the retry path relies on.
func (s *InMemoryStore) Put(_ context.Context, key, contentType string, content io.Reader) (*ObjectInfo, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if !AllowedContentTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	info := ObjectInfo{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{info: info, content: data}
	s.mu.Unlock()

	out := info // copy
	return &out, nil
}

// Get returns an io.ReadCloser over the blob content and its metadata.
func (s *InMemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	info := blob.info // copy
	return io.NopCloser(bytes.NewReader(blob.content)), &info, nil
}

// Stat returns blob metadata without content.
func (s *InMemoryStore) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}

	info := blob.info // copy
	return &info, nil
}

// Delete removes a blob by key.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// ListByPrefix returns metadata for all blobs whose key starts with prefix,
// used to enumerate one owner's audio.
func (s *InMemoryStore) ListByPrefix(_ context.Context, prefix string) ([]*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*ObjectInfo
	for key, b := range s.blobs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		info := b.info // copy
		matched = append(matched, &info)
	}
	return matched, nil
}

// ObjectKey builds the canonical audio key for a recording.
func ObjectKey(ownerID, recordingID string) string {
	return fmt.Sprintf("%s/%s.mp3", ownerID, recordingID)
}
