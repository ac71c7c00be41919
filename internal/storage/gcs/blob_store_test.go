package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "movierank-artifacts"})
	require.ErrorContains(t, err, "storage client is required")

	_, err = Dial(context.Background(), Config{Bucket: "  "})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestCloseWithoutOwnedClient(t *testing.T) {
	t.Parallel()

	var store *BlobStore
	require.NoError(t, store.Close())
	require.NoError(t, (&BlobStore{bucket: "b"}).Close())
}
