package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edital-monitor/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "snapshots")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		// #nosec G302 -- permissions lowered for the test.
		require.NoError(t, os.Chmod(dir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- restore so cleanup succeeds.
			_ = os.Chmod(dir, 0o700)
		})
		_, err := local.New(local.Config{BaseDir: dir})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("WritesSnapshot", func(t *testing.T) {
		uri, err := store.PutObject(context.Background(), "snapshots/abc.html", "text/html", bytes.NewReader([]byte("<p>v1</p>")))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(dir, "snapshots/abc.html"), uri)

		// #nosec G304 -- reads from the test temp directory.
		got, err := os.ReadFile(filepath.Join(dir, "snapshots/abc.html"))
		require.NoError(t, err)
		assert.Equal(t, "<p>v1</p>", string(got))
	})

	t.Run("OverwritesExisting", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "same.html", "text/html", bytes.NewReader([]byte("old")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "same.html", "text/html", bytes.NewReader([]byte("new")))
		require.NoError(t, err)

		// #nosec G304 -- reads from the test temp directory.
		got, err := os.ReadFile(filepath.Join(dir, "same.html"))
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "text/html", bytes.NewReader([]byte("x")))
		assert.Error(t, err)
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../outside.html", "text/html", bytes.NewReader([]byte("x")))
		assert.Error(t, err)
	})
}
