package http

import (
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
)

// Wire records use the camelCase field names the clients were built against.

type directoryRecord struct {
	ID          int64  `json:"id"`
	ParentID    *int64 `json:"parentId"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	DateCreated string `json:"dateCreated"`
}

type fileRecord struct {
	ID          int64  `json:"id"`
	DirectoryID int64  `json:"directoryId"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	ContentType string `json:"contentType"`
	S3Name      string `json:"s3Name"`
	DateCreated string `json:"dateCreated"`
}

type directoryListingRecord struct {
	Directory      directoryRecord   `json:"directory"`
	Subdirectories []directoryRecord `json:"subdirectories"`
	Files          []fileRecord      `json:"files"`
}

func toDirectoryRecord(d domain.Directory) directoryRecord {
	return directoryRecord{
		ID:          d.ID,
		ParentID:    d.ParentID,
		Name:        d.Name,
		Username:    d.Username,
		DateCreated: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toFileRecord(f domain.File) fileRecord {
	return fileRecord{
		ID:          f.ID,
		DirectoryID: f.DirectoryID,
		Name:        f.Name,
		Username:    f.Username,
		ContentType: f.ContentType,
		S3Name:      f.BlobKey,
		DateCreated: f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toDirectoryListingRecord(l domain.DirectoryListing) directoryListingRecord {
	rec := directoryListingRecord{
		Directory:      toDirectoryRecord(l.Directory),
		Subdirectories: make([]directoryRecord, 0, len(l.Subdirectories)),
		Files:          make([]fileRecord, 0, len(l.Files)),
	}
	for _, d := range l.Subdirectories {
		rec.Subdirectories = append(rec.Subdirectories, toDirectoryRecord(d))
	}
	for _, f := range l.Files {
		rec.Files = append(rec.Files, toFileRecord(f))
	}
	return rec
}
