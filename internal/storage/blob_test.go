package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "/media/")
	ctx := context.Background()

	url, err := store.Put(ctx, "dishes/abc.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/media/dishes/abc.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "dishes", "abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	require.NoError(t, store.Delete(ctx, "dishes/abc.jpg"))
	_, err = os.Stat(filepath.Join(dir, "dishes", "abc.jpg"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "dishes/abc.jpg"))
}

func TestLocalStore_KeyCannotEscapeRoot(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(filepath.Join(dir, "root"), "/media")

	url, err := store.Put(context.Background(), "../../etc/evil.jpg", "image/jpeg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/media/etc/evil.jpg", url)
	_, err = os.Stat(filepath.Join(dir, "root", "etc", "evil.jpg"))
	assert.NoError(t, err)

	_, err = store.Put(context.Background(), "", "image/jpeg", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalStore(t.TempDir(), "/media").Put(ctx, "a.jpg", "image/jpeg", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
