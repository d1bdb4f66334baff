package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
)

// maxDeleteDepth caps the breadth-first cascade of DeleteDirectory. Levels at
// or beyond the cap are left in place as orphaned rows; this is a safety
// bound against pathological trees, not a bug.
const maxDeleteDepth = 10

var ErrConflict = errors.New("directory already exists")

// TreeService manages each user's directory forest and the file metadata
// hanging off it. Sibling-name uniqueness relies on the store's unique index,
// not on application locking.
type TreeService struct {
	Store store.Store

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *TreeService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GetEntryDirectory resolves a user's root directory.
func (s *TreeService) GetEntryDirectory(ctx context.Context, username string) (domain.Directory, error) {
	user, err := s.Store.Users().GetUser(ctx, username)
	if err != nil {
		return domain.Directory{}, fmt.Errorf("failed to load user: %w", err)
	}

	dir, err := s.Store.Directories().Get(ctx, user.EntryDirectoryID)
	if err != nil {
		return domain.Directory{}, fmt.Errorf("failed to load entry directory: %w", err)
	}
	return dir, nil
}

// GetDirectory returns the directory together with its immediate
// subdirectories and files. One level only, never recursive.
func (s *TreeService) GetDirectory(ctx context.Context, id int64) (domain.DirectoryListing, error) {
	dir, err := s.Store.Directories().Get(ctx, id)
	if err != nil {
		return domain.DirectoryListing{}, fmt.Errorf("failed to load directory: %w", err)
	}

	subs, err := s.Store.Directories().ListChildren(ctx, id)
	if err != nil {
		return domain.DirectoryListing{}, fmt.Errorf("failed to list subdirectories: %w", err)
	}

	files, err := s.Store.Files().ListByDirectory(ctx, id)
	if err != nil {
		return domain.DirectoryListing{}, fmt.Errorf("failed to list files: %w", err)
	}

	return domain.DirectoryListing{
		Directory:      dir,
		Subdirectories: subs,
		Files:          files,
	}, nil
}

// CreateDirectory inserts a directory under parentID. The name is stored as
// given, no trimming or case folding. ErrConflict when a sibling with the
// same name already exists for the user.
func (s *TreeService) CreateDirectory(ctx context.Context, parentID int64, name, username string) (domain.Directory, error) {
	id, err := s.Store.Directories().Create(ctx, domain.Directory{
		ParentID:  &parentID,
		Name:      name,
		Username:  username,
		CreatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Directory{}, ErrConflict
		}
		return domain.Directory{}, fmt.Errorf("failed to create directory: %w", err)
	}

	dir, err := s.Store.Directories().Get(ctx, id)
	if err != nil {
		return domain.Directory{}, fmt.Errorf("failed to load created directory: %w", err)
	}
	return dir, nil
}

// DeleteDirectory removes the directory and its descendant subtree breadth
// first, at most maxDeleteDepth levels deep. File rows in the deleted
// directories are removed too, but blob payloads are not purged here.
func (s *TreeService) DeleteDirectory(ctx context.Context, id int64) error {
	if _, err := s.Store.Directories().Get(ctx, id); err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}

	queue := []int64{id}
	var doomed []int64
	for depth := 0; depth < maxDeleteDepth && len(queue) > 0; depth++ {
		var next []int64
		for _, dirID := range queue {
			doomed = append(doomed, dirID)
			children, err := s.Store.Directories().ListChildren(ctx, dirID)
			if err != nil {
				return fmt.Errorf("failed to list subdirectories: %w", err)
			}
			for _, c := range children {
				next = append(next, c.ID)
			}
		}
		queue = next
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, dirID := range doomed {
			files, err := tx.Files().ListByDirectory(ctx, dirID)
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}
			for _, f := range files {
				if err := tx.Files().Delete(ctx, f.ID); err != nil {
					return fmt.Errorf("failed to delete file row: %w", err)
				}
			}
			if err := tx.Directories().Delete(ctx, dirID); err != nil {
				return fmt.Errorf("failed to delete directory: %w", err)
			}
		}
		return nil
	})
}
