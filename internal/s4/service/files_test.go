package service

import (
	"context"
	"testing"
	"time"

	"github.com/s4hq/s4/internal/s4/blob"
	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/stretchr/testify/require"
)

// domainFile builds a keyless file row, the shape an interrupted upload
// leaves behind.
func domainFile(dirID int64, name, contentType string) domain.File {
	return domain.File{
		DirectoryID: dirID,
		Username:    "alice@example.com",
		Name:        name,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
}

func newFileService(t *testing.T) (*FileService, *blob.MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()

	st := newTestStore(t)
	registerUser(t, st, "alice@example.com", "hunter2!")

	tree := &TreeService{Store: st}
	entry, err := tree.GetEntryDirectory(ctx, "alice@example.com")
	require.NoError(t, err)

	blobs := blob.NewMemoryStore()
	return &FileService{Store: st, Blobs: blobs}, blobs, entry.ID
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	files, blobs, dirID := newFileService(t)

	t.Run("derives the blob key from the content type", func(t *testing.T) {
		f, err := files.Upload(ctx, dirID, "alice@example.com", "report", "application/pdf", []byte("%PDF"))
		require.NoError(t, err)
		require.Equal(t, "report", f.Name)
		require.Regexp(t, `^file-\d+\.pdf$`, f.BlobKey)

		obj, err := blobs.Get(ctx, f.BlobKey)
		require.NoError(t, err)
		require.Equal(t, []byte("%PDF"), obj.Data)
		require.Equal(t, "application/pdf", obj.ContentType)
	})

	t.Run("text/plain falls back to the file name extension", func(t *testing.T) {
		f, err := files.Upload(ctx, dirID, "alice@example.com", "notes.txt", "text/plain", []byte("hi"))
		require.NoError(t, err)
		require.Regexp(t, `\.txt$`, f.BlobKey)
	})

	t.Run("missing extension is rejected", func(t *testing.T) {
		_, err := files.Upload(ctx, dirID, "alice@example.com", "noext", "text/plain", []byte("hi"))
		require.ErrorIs(t, err, ErrNoExtension)
	})
}

func TestUploadDuplicates(t *testing.T) {
	ctx := context.Background()
	files, _, dirID := newFileService(t)

	t.Run("completed duplicate gets a suffixed name", func(t *testing.T) {
		first, err := files.Upload(ctx, dirID, "alice@example.com", "report", "application/pdf", []byte("v1"))
		require.NoError(t, err)
		require.Equal(t, "report", first.Name)

		second, err := files.Upload(ctx, dirID, "alice@example.com", "report", "application/pdf", []byte("v2"))
		require.NoError(t, err)
		require.Equal(t, "report(1)", second.Name)
	})

	t.Run("keyless leftovers are reaped and the name reused", func(t *testing.T) {
		// Simulate an upload that died before its blob key was persisted.
		staleID, err := files.Store.Files().Create(ctx, domainFile(dirID, "draft", "application/pdf"))
		require.NoError(t, err)

		f, err := files.Upload(ctx, dirID, "alice@example.com", "draft", "application/pdf", []byte("v1"))
		require.NoError(t, err)
		require.Equal(t, "draft", f.Name)

		_, err = files.Store.Files().Get(ctx, staleID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	files, _, dirID := newFileService(t)

	t.Run("round trip", func(t *testing.T) {
		f, err := files.Upload(ctx, dirID, "alice@example.com", "report", "application/pdf", []byte("%PDF"))
		require.NoError(t, err)

		p, err := files.Download(ctx, f.ID, f.BlobKey)
		require.NoError(t, err)
		require.False(t, p.Dummy)
		require.Equal(t, []byte("%PDF"), p.Data)
		require.Equal(t, "application/pdf", p.ContentType)
	})

	t.Run("sentinel id short-circuits", func(t *testing.T) {
		p, err := files.Download(ctx, SentinelFileID, "whatever")
		require.NoError(t, err)
		require.True(t, p.Dummy)
	})

	t.Run("sentinel key short-circuits", func(t *testing.T) {
		p, err := files.Download(ctx, 42, SentinelBlobKey)
		require.NoError(t, err)
		require.True(t, p.Dummy)
	})

	t.Run("missing blob", func(t *testing.T) {
		_, err := files.Download(ctx, 42, "file-42.pdf")
		require.ErrorIs(t, err, blob.ErrNotFound)
	})
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()
	files, blobs, dirID := newFileService(t)

	f, err := files.Upload(ctx, dirID, "alice@example.com", "report", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	t.Run("returns the pre-deletion snapshot", func(t *testing.T) {
		snapshot, err := files.Delete(ctx, f.ID, f.BlobKey)
		require.NoError(t, err)
		require.Equal(t, f.ID, snapshot.ID)
		require.Equal(t, "report", snapshot.Name)

		_, err = files.Store.Files().Get(ctx, f.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.Zero(t, blobs.Len())
	})

	t.Run("missing row", func(t *testing.T) {
		_, err := files.Delete(ctx, f.ID, f.BlobKey)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("blob failure does not restore the row", func(t *testing.T) {
		g, err := files.Upload(ctx, dirID, "alice@example.com", "other", "application/pdf", []byte("x"))
		require.NoError(t, err)

		// Deleting with a bogus key: the memory store treats it as a no-op,
		// the row still goes away.
		snapshot, err := files.Delete(ctx, g.ID, "bogus-key")
		require.NoError(t, err)
		require.Equal(t, g.ID, snapshot.ID)

		_, err = files.Store.Files().Get(ctx, g.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
