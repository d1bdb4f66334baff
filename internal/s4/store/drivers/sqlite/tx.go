package sqlite

import (
	"context"
	"database/sql"

	"github.com/s4hq/s4/internal/s4/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller commits/rollbacks; outer DB stays open

// Ping is a no-op for transactions; the connection is already established.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx starts

func (t *txStore) Users() store.Users                         { return &usersRepo{q: t.tx} }
func (t *txStore) VerificationCodes() store.VerificationCodes { return &verificationCodesRepo{q: t.tx} }
func (t *txStore) TwoFACodes() store.TwoFACodes               { return &twoFACodesRepo{q: t.tx} }
func (t *txStore) LoginProcesses() store.LoginProcesses       { return &loginProcessesRepo{q: t.tx} }
func (t *txStore) Directories() store.Directories             { return &directoriesRepo{q: t.tx} }
func (t *txStore) Files() store.Files                         { return &filesRepo{q: t.tx} }
