package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rently-backend/internal/logger"
)

type pendingUpload struct {
	key       string
	expiresAt time.Time
}

// LocalStorage keeps evidence on the local filesystem and serves it through
// the API's upload and download routes.
type LocalStorage struct {
	baseURL     string
	evidenceDir string
	maxFileSize int64
	now         func() time.Time

	mu      sync.Mutex
	uploads map[string]pendingUpload
}

// NewLocalStorage creates the evidence directory under cfg.UploadDir
func NewLocalStorage(cfg Config) (*LocalStorage, error) {
	evidenceDir := filepath.Join(cfg.UploadDir, "evidence")
	if err := os.MkdirAll(evidenceDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}

	return &LocalStorage{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		evidenceDir: evidenceDir,
		maxFileSize: cfg.MaxFileSize,
		now:         time.Now,
		uploads:     make(map[string]pendingUpload),
	}, nil
}

func (s *LocalStorage) NewKey(userID, contentType string) string {
	ext := ""
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "video/mp4":
		ext = ".mp4"
	}
	return path.Join("evidence", userID, uuid.NewString()+ext)
}

// GenerateUploadURL issues a one-shot upload token bound to key
func (s *LocalStorage) GenerateUploadURL(ctx context.Context, key string, contentType string, expiresIn time.Duration) (string, error) {
	if _, err := s.localPath(key); err != nil {
		return "", err
	}

	uploadToken := uuid.NewString()
	s.mu.Lock()
	s.uploads[uploadToken] = pendingUpload{key: key, expiresAt: s.now().Add(expiresIn)}
	s.mu.Unlock()

	return fmt.Sprintf("%s/v1/evidence/upload/%s?key=%s", s.baseURL, uploadToken, url.QueryEscape(key)), nil
}

func (s *LocalStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	if _, err := s.localPath(key); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/v1/evidence/download?key=%s", s.baseURL, url.QueryEscape(key)), nil
}

func (s *LocalStorage) Stat(ctx context.Context, key string) (bool, int64, error) {
	fullPath, err := s.localPath(key)
	if err != nil {
		return false, 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, info.Size(), nil
}

func (s *LocalStorage) FileExists(ctx context.Context, key string) (bool, error) {
	exists, _, err := s.Stat(ctx, key)
	if errors.Is(err, ErrInvalidKey) {
		return false, nil
	}
	return exists, err
}

func (s *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	fullPath, err := s.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SaveFile consumes the upload token and writes at most maxFileSize bytes.
func (s *LocalStorage) SaveFile(token, key string, reader io.Reader) error {
	s.mu.Lock()
	upload, ok := s.uploads[token]
	if ok {
		delete(s.uploads, token)
	}
	s.mu.Unlock()
	if !ok || upload.key != key || s.now().After(upload.expiresAt) {
		return ErrUploadExpired
	}

	fullPath, err := s.localPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if s.maxFileSize > 0 {
		reader = io.LimitReader(reader, s.maxFileSize+1)
	}
	written, err := io.Copy(file, reader)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if s.maxFileSize > 0 && written > s.maxFileSize {
		file.Close()
		os.Remove(fullPath)
		return fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}

	logger.Debug("Stored evidence", "key", key, "bytes", written)
	return nil
}

func (s *LocalStorage) ReadFile(key string) (io.ReadCloser, error) {
	fullPath, err := s.localPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// localPath maps a key to a file below the evidence directory.
func (s *LocalStorage) localPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean != "/"+key || !strings.HasPrefix(key, "evidence/") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.evidenceDir, filepath.FromSlash(strings.TrimPrefix(key, "evidence/"))), nil
}
