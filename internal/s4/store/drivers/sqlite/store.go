package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/s4hq/s4/internal/s4/store"
	_ "modernc.org/sqlite"
)

// querier is the subset of *sql.DB / *sql.Tx the repositories need, so the
// same repo code serves both transactional and plain access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users                         { return &usersRepo{q: s.db} }
func (s *Store) VerificationCodes() store.VerificationCodes { return &verificationCodesRepo{q: s.db} }
func (s *Store) TwoFACodes() store.TwoFACodes               { return &twoFACodesRepo{q: s.db} }
func (s *Store) LoginProcesses() store.LoginProcesses       { return &loginProcessesRepo{q: s.db} }
func (s *Store) Directories() store.Directories             { return &directoriesRepo{q: s.db} }
func (s *Store) Files() store.Files                         { return &filesRepo{q: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConflict translates sqlite unique/primary key violations into
// store.ErrAlreadyExists. modernc.org/sqlite surfaces these as plain errors
// carrying the constraint message, so we match on it.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}
