package domain

import "time"

// Directory is one node of a user's file tree. The per-user root ("entry"
// directory) has a nil ParentID.
type Directory struct {
	ID        int64
	ParentID  *int64
	Name      string
	Username  string
	CreatedAt time.Time
}

// File is the metadata row for one stored file. BlobKey is empty until the
// payload upload completes; the payload bytes live only in the blob store.
type File struct {
	ID          int64
	DirectoryID int64
	Username    string
	Name        string
	ContentType string
	BlobKey     string
	CreatedAt   time.Time
}

// DirectoryListing is one directory with its immediate children, one level
// deep.
type DirectoryListing struct {
	Directory      Directory
	Subdirectories []Directory
	Files          []File
}
