package sqlite

import (
	"context"
	"database/sql"

	"github.com/s4hq/s4/internal/s4/domain"
)

type directoriesRepo struct {
	q querier
}

func (r *directoriesRepo) Get(ctx context.Context, id int64) (domain.Directory, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, parent_id, name, username, created_at
		FROM directories WHERE id = ?`, id)

	d, err := scanDirectory(row.Scan)
	if err != nil {
		return domain.Directory{}, mapNotFound(err)
	}
	return d, nil
}

func (r *directoriesRepo) ListChildren(ctx context.Context, parentID int64) ([]domain.Directory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, parent_id, name, username, created_at
		FROM directories WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDirectories(rows)
}

func (r *directoriesRepo) ListByUser(ctx context.Context, username string) ([]domain.Directory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, parent_id, name, username, created_at
		FROM directories WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDirectories(rows)
}

func (r *directoriesRepo) Create(ctx context.Context, d domain.Directory) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO directories (parent_id, name, username, created_at)
		VALUES (?, ?, ?, ?)`,
		mapOptionalInt64(d.ParentID), d.Name, d.Username, d.CreatedAt)
	if err != nil {
		return 0, mapConflict(err)
	}
	return res.LastInsertId()
}

func (r *directoriesRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM directories WHERE id = ?`, id)
	return err
}

func scanDirectory(scan func(dest ...any) error) (domain.Directory, error) {
	var d domain.Directory
	var parent sql.NullInt64
	if err := scan(&d.ID, &parent, &d.Name, &d.Username, &d.CreatedAt); err != nil {
		return domain.Directory{}, err
	}
	if parent.Valid {
		v := parent.Int64
		d.ParentID = &v
	}
	return d, nil
}

func collectDirectories(rows *sql.Rows) ([]domain.Directory, error) {
	var out []domain.Directory
	for rows.Next() {
		d, err := scanDirectory(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func mapOptionalInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
