package sqlite

import (
	"context"

	"github.com/s4hq/s4/internal/s4/domain"
)

type usersRepo struct {
	q querier
}

func (r *usersRepo) GetUser(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT username, password_hash, security_question, security_answer,
		       secret, entry_directory_id, created_at
		FROM users WHERE username = ?`, username)

	var u domain.User
	err := row.Scan(
		&u.Username,
		&u.PasswordHash,
		&u.SecurityQuestion,
		&u.SecurityAnswer,
		&u.Secret,
		&u.EntryDirectoryID,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, security_question,
		                   security_answer, secret, entry_directory_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username,
		u.PasswordHash,
		u.SecurityQuestion,
		u.SecurityAnswer,
		u.Secret,
		u.EntryDirectoryID,
		u.CreatedAt,
	)
	return mapConflict(err)
}
