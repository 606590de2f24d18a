package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"custody-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage("http://localhost:8080/", t.TempDir())
	require.NoError(t, err)

	t.Run("Save and open", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "photos/a/1.jpg", strings.NewReader("jpeg-bytes")))

		exists, size, err := s.Exists(ctx, "photos/a/1.jpg")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, int64(len("jpeg-bytes")), size)

		r, err := s.Open(ctx, "photos/a/1.jpg")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(data))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "k", strings.NewReader("one")))
		require.NoError(t, s.Save(ctx, "k", strings.NewReader("two")))
		r, err := s.Open(ctx, "k")
		require.NoError(t, err)
		defer r.Close()
		data, _ := io.ReadAll(r)
		assert.Equal(t, "two", string(data))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := s.Open(ctx, "nope.png")
		assert.ErrorIs(t, err, storage.ErrNotExist)
		exists, _, err := s.Exists(ctx, "nope.png")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, s.Delete(ctx, "nope.png"))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "gone.txt", strings.NewReader("x")))
		require.NoError(t, s.Delete(ctx, "gone.txt"))
		_, err := s.Open(ctx, "gone.txt")
		assert.ErrorIs(t, err, storage.ErrNotExist)
	})

	t.Run("Keys stay below root", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "../../escape.txt", strings.NewReader("x")))
		exists, _, err := s.Exists(ctx, "escape.txt")
		require.NoError(t, err)
		assert.True(t, exists, "traversal is clamped to root")

		assert.Error(t, s.Save(ctx, "", strings.NewReader("x")))
		assert.Error(t, s.Save(ctx, "/", strings.NewReader("x")))
	})

	t.Run("Download URL", func(t *testing.T) {
		u, err := s.DownloadURL(ctx, "photos/a b.jpg", time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "http://localhost:8080/api/v1/files/"))
		assert.Contains(t, u, "?key=photos%2Fa+b.jpg")

		hash := strings.TrimPrefix(u, "http://localhost:8080/api/v1/files/")
		hash = hash[:strings.Index(hash, "?")]
		assert.True(t, storage.MatchesKey(hash, "photos/a b.jpg"))
		assert.False(t, storage.MatchesKey(hash, "photos/other.jpg"))
		assert.False(t, storage.MatchesKey("x", "photos/a b.jpg"))
	})
}
