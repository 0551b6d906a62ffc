package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidKey    = errors.New("invalid storage key")
	ErrUploadExpired = errors.New("upload url is invalid or expired")
	ErrNotFound      = errors.New("file not found")
)

// EvidenceStorage defines the interface for issue report evidence backends.
// Keys are relative slash-separated paths such as "evidence/<user>/<id>.jpg".
type EvidenceStorage interface {
	// NewKey returns a fresh key for a file uploaded by userID
	NewKey(userID, contentType string) string

	// GenerateUploadURL returns a URL the client PUTs the file to
	GenerateUploadURL(ctx context.Context, key string, contentType string, expiresIn time.Duration) (string, error)

	// GenerateDownloadURL returns a URL the file can be fetched from
	GenerateDownloadURL(ctx context.Context, key string) (string, error)

	// Stat reports whether a file exists and its size
	Stat(ctx context.Context, key string) (exists bool, size int64, err error)

	// FileExists reports whether a file was uploaded under key
	FileExists(ctx context.Context, key string) (bool, error)

	// DeleteFile removes a file from storage
	DeleteFile(ctx context.Context, key string) error

	// SaveFile stores an upload presented with the token from GenerateUploadURL
	SaveFile(token, key string, reader io.Reader) error

	// ReadFile opens a file for reading
	ReadFile(key string) (io.ReadCloser, error)
}
