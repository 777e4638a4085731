package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreKeepsIndependentCopies(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<html>edital</html>")
	uri, err := store.PutObject(context.Background(), "snapshots/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://snapshots/abc.html", uri)

	snap, ok := store.Get("snapshots/abc.html")
	require.True(t, ok)
	assert.Equal(t, "text/html", snap.ContentType)
	snap.Body[0] = 'X'

	again, _ := store.Get("snapshots/abc.html")
	assert.Equal(t, "<html>edital</html>", string(again.Body))
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"s/b.html", "s/a.html"} {
		_, err := store.PutObject(context.Background(), p, "text/html", bytes.NewReader([]byte("x")))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"s/a.html", "s/b.html"}, store.Paths())

	_, ok := store.Get("missing")
	assert.False(t, ok)

	_, err := store.PutObject(context.Background(), " ", "text/html", bytes.NewReader(nil))
	assert.Error(t, err)
}
