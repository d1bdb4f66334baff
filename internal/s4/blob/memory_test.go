package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.Put(ctx, "file-1.pdf", "application/pdf", []byte("hello")))

	obj, err := m.Get(ctx, "file-1.pdf")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", obj.ContentType)
	require.Equal(t, []byte("hello"), obj.Data)

	require.NoError(t, m.Delete(ctx, "file-1.pdf"))
	_, err = m.Get(ctx, "file-1.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	data := []byte("original")
	require.NoError(t, m.Put(ctx, "k", "text/plain", data))
	data[0] = 'X'

	obj, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), obj.Data)
}

func TestMemoryStoreDeleteMissingKey(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Delete(context.Background(), "absent"))
}
