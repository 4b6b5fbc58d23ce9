package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "archive"), "https://cdn.example.com/")
	require.NoError(t, err)

	key := ArchiveKey("u1", "f1", ".pdf")
	require.NoError(t, s.Save(ctx, key, strings.NewReader("data"), "application/pdf"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := s.GetSize(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "data", string(data))

	url, err := s.GetSignedURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ocr/u1/f1.pdf", url)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_FullPathStaysInside(t *testing.T) {
	s := NewTempStorage("/tmp/uploads")

	p, err := s.FullPath("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/uploads/etc/passwd", p)

	_, err = s.FullPath("..")
	assert.Error(t, err)
}

func TestLocalStorage_EnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	s := NewTempStorage(dir)

	require.NoError(t, s.EnsureDir())
	require.NoError(t, s.EnsureDir())
	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestLocalStorage_RemoveOlderThan(t *testing.T) {
	dir := t.TempDir()
	s := NewTempStorage(dir)
	now := time.Now()

	old := filepath.Join(dir, "old.pdf")
	fresh := filepath.Join(dir, "fresh.pdf")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(old, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	n, err := s.RemoveOlderThan(context.Background(), 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "sub"))
}

func TestNewStorage_Unsupported(t *testing.T) {
	_, err := NewStorage(Config{Type: "ftp"})
	assert.EqualError(t, err, "unsupported storage type: ftp")
}
