package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const metaSuffix = ".meta.json"

// FileSystemStorage implements BlobStore on the local filesystem. Each
// object is stored next to a small JSON sidecar holding its content type.
type FileSystemStorage struct {
	rootDir string
}

type objectMeta struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// NewFileSystemStorage creates a new filesystem-based storage
func NewFileSystemStorage(rootDir string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStorage{rootDir: rootDir}, nil
}

func (s *FileSystemStorage) path(key string) (string, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(normalized)), nil
}

// Put implements BlobStore.Put. The object is written to a temporary file
// and renamed into place so readers never see a partial object.
func (s *FileSystemStorage) Put(ctx context.Context, key string, content io.Reader, contentType string) (int64, error) {
	objectPath, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(objectPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(objectPath), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}

	data, err := json.Marshal(objectMeta{ContentType: contentType, Size: size})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal object metadata: %w", err)
	}
	if err := os.WriteFile(objectPath+metaSuffix, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write object metadata: %w", err)
	}

	if err := os.Rename(tmp.Name(), objectPath); err != nil {
		return 0, fmt.Errorf("failed to store object: %w", err)
	}
	return size, nil
}

// Get implements BlobStore.Get
func (s *FileSystemStorage) Get(ctx context.Context, key string) (*Object, error) {
	objectPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(objectPath + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object metadata: %w", err)
	}

	var meta objectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object metadata: %w", err)
	}

	f, err := os.Open(objectPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}

	size := meta.Size
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &Object{Body: f, ContentType: meta.ContentType, Size: size}, nil
}

// Delete implements BlobStore.Delete
func (s *FileSystemStorage) Delete(ctx context.Context, key string) error {
	objectPath, err := s.path(key)
	if err != nil {
		return err
	}

	for _, p := range []string{objectPath, objectPath + metaSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}
	return nil
}
