package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/s4hq/s4/internal/s4/blob"
	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/slogx"
)

const (
	// SentinelFileID and SentinelBlobKey are a client-side placeholder
	// contract: downloads presenting either one get a stub success instead
	// of a real fetch.
	SentinelFileID  = -1
	SentinelBlobKey = "dummyData"
)

var ErrNoExtension = errors.New("no file extension")

// Payload is the result of a download. Dummy is set for sentinel requests.
type Payload struct {
	Data        []byte
	ContentType string
	Dummy       bool
}

// FileService stores file metadata in the relational store and payloads in
// the blob store. Upload runs three sequential store interactions with no
// compensating transaction; a crash in between leaves a keyless row that the
// duplicate cleanup reaps on a later attempt.
type FileService struct {
	Store store.Store
	Blobs blob.Store

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *FileService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload stores a new file under directoryID. Keyless duplicate rows from
// earlier failed uploads are deleted; completed duplicates cause the stored
// name to gain a "(<count>)" suffix rather than a rejection.
func (s *FileService) Upload(ctx context.Context, directoryID int64, username, name, contentType string, payload []byte) (domain.File, error) {
	ext := fileExtension(name, contentType)
	if ext == "" {
		return domain.File{}, ErrNoExtension
	}

	dupes, err := s.Store.Files().FindDuplicates(ctx, directoryID, name, contentType)
	if err != nil {
		return domain.File{}, fmt.Errorf("failed to query duplicates: %w", err)
	}

	finalName := name
	survivors := 0
	for _, d := range dupes {
		if d.BlobKey == "" {
			if err := s.Store.Files().Delete(ctx, d.ID); err != nil {
				return domain.File{}, fmt.Errorf("failed to reap incomplete upload: %w", err)
			}
			continue
		}
		survivors++
	}
	if survivors > 0 {
		finalName = fmt.Sprintf("%s(%d)", name, survivors)
	}

	id, err := s.Store.Files().Create(ctx, domain.File{
		DirectoryID: directoryID,
		Username:    username,
		Name:        finalName,
		ContentType: contentType,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.File{}, fmt.Errorf("failed to create file row: %w", err)
	}

	blobKey := fmt.Sprintf("file-%d.%s", id, ext)
	if err := s.Store.Files().SetBlobKey(ctx, id, blobKey); err != nil {
		return domain.File{}, fmt.Errorf("failed to persist blob key: %w", err)
	}

	if err := s.Blobs.Put(ctx, blobKey, contentType, payload); err != nil {
		return domain.File{}, fmt.Errorf("failed to write blob: %w", err)
	}

	// Row and blob are already persisted at this point; a re-fetch failure
	// is still reported as an error.
	f, err := s.Store.Files().Get(ctx, id)
	if err != nil {
		return domain.File{}, fmt.Errorf("failed to load created file: %w", err)
	}
	return f, nil
}

// Download fetches a payload by blob key. Sentinel requests short-circuit
// with a dummy payload and never touch the blob store.
func (s *FileService) Download(ctx context.Context, id int64, blobKey string) (Payload, error) {
	if id == SentinelFileID || blobKey == SentinelBlobKey {
		return Payload{Dummy: true}, nil
	}

	obj, err := s.Blobs.Get(ctx, blobKey)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to fetch blob: %w", err)
	}
	if obj.ContentType == "" {
		return Payload{}, fmt.Errorf("failed to fetch blob: %w", blob.ErrNotFound)
	}
	return Payload{Data: obj.Data, ContentType: obj.ContentType}, nil
}

// Delete removes the metadata row and returns its pre-deletion snapshot. The
// blob delete afterwards is best effort; a failure there does not roll back
// the row deletion.
func (s *FileService) Delete(ctx context.Context, id int64, blobKey string) (domain.File, error) {
	f, err := s.Store.Files().Get(ctx, id)
	if err != nil {
		return domain.File{}, fmt.Errorf("failed to load file: %w", err)
	}

	if err := s.Store.Files().Delete(ctx, id); err != nil {
		return domain.File{}, fmt.Errorf("failed to delete file row: %w", err)
	}

	if err := s.Blobs.Delete(ctx, blobKey); err != nil {
		slogx.FromContext(ctx).Warn("failed to delete blob after row deletion",
			"blob_key", blobKey, "error", err)
	}
	return f, nil
}

// fileExtension derives the blob key extension. The generic text/plain
// content type defers to the file name; anything else uses the subtype.
func fileExtension(name, contentType string) string {
	if contentType == "text/plain" {
		idx := strings.LastIndex(name, ".")
		if idx < 0 || idx == len(name)-1 {
			return ""
		}
		return name[idx+1:]
	}
	idx := strings.LastIndex(contentType, "/")
	if idx < 0 || idx == len(contentType)-1 {
		return ""
	}
	return contentType[idx+1:]
}
