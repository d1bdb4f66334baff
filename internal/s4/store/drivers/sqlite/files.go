package sqlite

import (
	"context"
	"database/sql"

	"github.com/s4hq/s4/internal/s4/domain"
)

type filesRepo struct {
	q querier
}

func (r *filesRepo) Get(ctx context.Context, id int64) (domain.File, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, directory_id, username, name, content_type, blob_key, created_at
		FROM files WHERE id = ?`, id)

	f, err := scanFile(row.Scan)
	if err != nil {
		return domain.File{}, mapNotFound(err)
	}
	return f, nil
}

func (r *filesRepo) ListByDirectory(ctx context.Context, directoryID int64) ([]domain.File, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, directory_id, username, name, content_type, blob_key, created_at
		FROM files WHERE directory_id = ? ORDER BY id`, directoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFiles(rows)
}

func (r *filesRepo) FindDuplicates(ctx context.Context, directoryID int64, name, contentType string) ([]domain.File, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, directory_id, username, name, content_type, blob_key, created_at
		FROM files WHERE directory_id = ? AND name = ? AND content_type = ?
		ORDER BY id`, directoryID, name, contentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFiles(rows)
}

func (r *filesRepo) Create(ctx context.Context, f domain.File) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO files (directory_id, username, name, content_type, blob_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.DirectoryID, f.Username, f.Name, f.ContentType, mapOptionalString(f.BlobKey), f.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *filesRepo) SetBlobKey(ctx context.Context, id int64, key string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE files SET blob_key = ? WHERE id = ?`, key, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *filesRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return err
}

func scanFile(scan func(dest ...any) error) (domain.File, error) {
	var f domain.File
	var blobKey sql.NullString
	err := scan(&f.ID, &f.DirectoryID, &f.Username, &f.Name, &f.ContentType, &blobKey, &f.CreatedAt)
	if err != nil {
		return domain.File{}, err
	}
	f.BlobKey = blobKey.String
	return f, nil
}

func collectFiles(rows *sql.Rows) ([]domain.File, error) {
	var out []domain.File
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func mapOptionalString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
