package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemStore persists blobs under a root directory, one file per
// object plus a JSON sidecar carrying the metadata a filesystem cannot.
// Keys map directly to relative paths, so the on-disk layout mirrors the
// "{owner_id}/{recording_id}.mp3" key scheme.
type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

const metaSuffix = ".meta.json"

type blobMeta struct {
	ContentType string    `json:"content_type"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// resolve rejects keys that would escape the root directory.
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *FilesystemStore) Put(ctx context.Context, key, contentType string, content io.Reader) (*ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if !AllowedContentTypes[contentType] {
		return nil, ErrInvalidContentType
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating blob file: %w", err)
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(f, hasher), io.LimitReader(content, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	if written > MaxFileSize {
		os.Remove(path)
		return nil, ErrFileTooLarge
	}

	meta := blobMeta{
		ContentType: contentType,
		Hash:        fmt.Sprintf("%x", hasher.Sum(nil)),
		CreatedAt:   time.Now().UTC(),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("encoding blob metadata: %w", err)
	}
	if err := os.WriteFile(path+metaSuffix, metaBytes, 0o644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing blob metadata: %w", err)
	}

	return &ObjectInfo{
		Key:         key,
		ContentType: contentType,
		Size:        written,
		Hash:        meta.Hash,
		CreatedAt:   meta.CreatedAt,
	}, nil
}

func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, info, nil
}

func (s *FilesystemStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("stat blob: %w", err)
	}

	var meta blobMeta
	if raw, err := os.ReadFile(path + metaSuffix); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	if meta.ContentType == "" {
		meta.ContentType = "audio/mpeg"
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = st.ModTime().UTC()
	}

	return &ObjectInfo{
		Key:         key,
		ContentType: meta.ContentType,
		Size:        st.Size(),
		Hash:        meta.Hash,
		CreatedAt:   meta.CreatedAt,
	}, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("deleting blob: %w", err)
	}
	_ = os.Remove(path + metaSuffix)
	return nil
}

func (s *FilesystemStore) ListByPrefix(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	var infos []*ObjectInfo
	err := filepath.Walk(s.root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.Stat(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	return infos, nil
}
