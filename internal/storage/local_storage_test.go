package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(Config{
		UploadDir:   t.TempDir(),
		BaseURL:     "http://localhost:8080/",
		MaxFileSize: 16,
	})
	require.NoError(t, err)
	return s
}

// uploadToken extracts the token from an upload URL.
func uploadToken(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	parts := strings.Split(u.Path, "/")
	return parts[len(parts)-1]
}

func TestLocalStorage_UploadAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	key := s.NewKey("renter", "image/jpeg")
	assert.True(t, strings.HasPrefix(key, "evidence/renter/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	uploadURL, err := s.GenerateUploadURL(ctx, key, "image/jpeg", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uploadURL, "http://localhost:8080/v1/evidence/upload/"))
	token := uploadToken(t, uploadURL)

	exists, err := s.FileExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.SaveFile(token, key, strings.NewReader("photo")))

	exists, size, err := s.Stat(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(5), size)

	file, err := s.ReadFile(key)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	file.Close()
	assert.Equal(t, "photo", string(data))

	t.Run("Token is single use", func(t *testing.T) {
		assert.ErrorIs(t, s.SaveFile(token, key, strings.NewReader("again")), ErrUploadExpired)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.DeleteFile(ctx, key))
		_, err := s.ReadFile(key)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.DeleteFile(ctx, key))
	})
}

func TestLocalStorage_Guards(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	t.Run("Token bound to its key", func(t *testing.T) {
		uploadURL, err := s.GenerateUploadURL(ctx, "evidence/a/1.jpg", "image/jpeg", time.Minute)
		require.NoError(t, err)
		err = s.SaveFile(uploadToken(t, uploadURL), "evidence/a/2.jpg", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUploadExpired)
	})

	t.Run("Expired token", func(t *testing.T) {
		uploadURL, err := s.GenerateUploadURL(ctx, "evidence/a/3.jpg", "image/jpeg", -time.Second)
		require.NoError(t, err)
		err = s.SaveFile(uploadToken(t, uploadURL), "evidence/a/3.jpg", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrUploadExpired)
	})

	t.Run("Oversized file is discarded", func(t *testing.T) {
		key := "evidence/a/4.jpg"
		uploadURL, err := s.GenerateUploadURL(ctx, key, "image/jpeg", time.Minute)
		require.NoError(t, err)
		err = s.SaveFile(uploadToken(t, uploadURL), key, strings.NewReader(strings.Repeat("x", 17)))
		assert.Error(t, err)
		exists, err := s.FileExists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Keys outside the evidence tree", func(t *testing.T) {
		for _, key := range []string{"", "evidence/../secret", "/etc/passwd", "other/file.jpg", "evidence//x"} {
			_, err := s.GenerateUploadURL(ctx, key, "image/jpeg", time.Minute)
			assert.ErrorIs(t, err, ErrInvalidKey, key)
			exists, err := s.FileExists(ctx, key)
			assert.NoError(t, err)
			assert.False(t, exists)
		}
	})

	t.Run("Allowed types", func(t *testing.T) {
		cfg := Config{AllowedTypes: []string{"image/png"}}
		assert.True(t, cfg.Allows("image/png"))
		assert.False(t, cfg.Allows("text/html"))
	})
}
