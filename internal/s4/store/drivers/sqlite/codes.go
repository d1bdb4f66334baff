package sqlite

import (
	"context"
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
)

type verificationCodesRepo struct {
	q querier
}

func (r *verificationCodesRepo) Get(ctx context.Context, username string) (domain.VerificationCode, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT username, code, verified, created_at
		FROM verification_codes WHERE username = ?`, username)

	var vc domain.VerificationCode
	if err := row.Scan(&vc.Username, &vc.Code, &vc.Verified, &vc.CreatedAt); err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	return vc, nil
}

func (r *verificationCodesRepo) Upsert(ctx context.Context, username, code string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO verification_codes (username, code, verified, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (username)
		DO UPDATE SET code = excluded.code, verified = 0, created_at = excluded.created_at`,
		username, code, at)
	return err
}

func (r *verificationCodesRepo) MarkVerified(ctx context.Context, username string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE verification_codes SET verified = 1 WHERE username = ?`, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *verificationCodesRepo) DeleteStaleUnverified(ctx context.Context, before time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM verification_codes WHERE verified = 0 AND created_at < ?`, before)
	return err
}

type twoFACodesRepo struct {
	q querier
}

func (r *twoFACodesRepo) Get(ctx context.Context, username string) (domain.TwoFACode, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT username, secret, verified, created_at
		FROM twofa_codes WHERE username = ?`, username)

	var c domain.TwoFACode
	if err := row.Scan(&c.Username, &c.Secret, &c.Verified, &c.CreatedAt); err != nil {
		return domain.TwoFACode{}, mapNotFound(err)
	}
	return c, nil
}

func (r *twoFACodesRepo) Create(ctx context.Context, c domain.TwoFACode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO twofa_codes (username, secret, verified, created_at)
		VALUES (?, ?, ?, ?)`,
		c.Username, c.Secret, c.Verified, c.CreatedAt)
	return mapConflict(err)
}

func (r *twoFACodesRepo) MarkVerified(ctx context.Context, username string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE twofa_codes SET verified = 1 WHERE username = ?`, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
