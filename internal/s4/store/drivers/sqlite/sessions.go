package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
)

type loginProcessesRepo struct {
	q querier
}

func (r *loginProcessesRepo) Get(ctx context.Context, username string) (domain.LoginProcess, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT username, window_id, twofa_verified, biometric_verified, created_at
		FROM login_processes WHERE username = ?`, username)

	var lp domain.LoginProcess
	err := row.Scan(
		&lp.Username,
		&lp.WindowID,
		&lp.TwoFAVerified,
		&lp.BiometricVerified,
		&lp.CreatedAt,
	)
	if err != nil {
		return domain.LoginProcess{}, mapNotFound(err)
	}
	return lp, nil
}

func (r *loginProcessesRepo) Create(ctx context.Context, lp domain.LoginProcess) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_processes (username, window_id, twofa_verified, biometric_verified, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		lp.Username, lp.WindowID, lp.TwoFAVerified, lp.BiometricVerified, lp.CreatedAt)
	return mapConflict(err)
}

func (r *loginProcessesRepo) Reset(ctx context.Context, username, windowID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE login_processes
		SET window_id = ?, twofa_verified = 0, biometric_verified = 0, created_at = ?
		WHERE username = ?`,
		windowID, at, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *loginProcessesRepo) SetTwoFAVerified(ctx context.Context, username string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE login_processes SET twofa_verified = 1 WHERE username = ?`, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *loginProcessesRepo) DeleteExpired(ctx context.Context, before time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM login_processes WHERE created_at < ?`, before)
	return err
}

// requireAffected maps zero-row updates onto ErrNotFound so callers can tell
// "no such row" apart from success.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
