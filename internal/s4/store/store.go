package store

import (
	"context"
	"errors"
	"time"

	"github.com/s4hq/s4/internal/s4/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// Correctness of "no duplicate sibling directory" and "exactly one login
// process per user" relies on the driver's unique-key constraints, not on
// application-level locking; the loser of a concurrent race receives
// ErrAlreadyExists.
type Store interface {
	Users() Users
	VerificationCodes() VerificationCodes
	TwoFACodes() TwoFACodes
	LoginProcesses() LoginProcesses
	Directories() Directories
	Files() Files

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store with Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUser returns a user by username, or ErrNotFound.
	GetUser(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user row. ErrAlreadyExists on duplicate username.
	CreateUser(ctx context.Context, u domain.User) error
}

type VerificationCodes interface {
	// Get returns the verification code row for a username.
	Get(ctx context.Context, username string) (domain.VerificationCode, error)

	// Upsert creates the row or overwrites the code of an existing one,
	// clearing the verified flag and resetting the creation time.
	Upsert(ctx context.Context, username, code string, at time.Time) error

	// MarkVerified flips the verified flag.
	MarkVerified(ctx context.Context, username string) error

	// DeleteStaleUnverified removes unverified rows created before the cutoff.
	DeleteStaleUnverified(ctx context.Context, before time.Time) error
}

type TwoFACodes interface {
	// Get returns the TOTP secret row for a username.
	Get(ctx context.Context, username string) (domain.TwoFACode, error)

	// Create inserts the secret row. The secret persists across logins and is
	// never rotated by this service. ErrAlreadyExists on duplicate.
	Create(ctx context.Context, c domain.TwoFACode) error

	// MarkVerified flips the verified flag.
	MarkVerified(ctx context.Context, username string) error
}

type LoginProcesses interface {
	// Get returns the login process for a username, or ErrNotFound.
	Get(ctx context.Context, username string) (domain.LoginProcess, error)

	// Create inserts a fresh login process. ErrAlreadyExists when a row for
	// the username is already present.
	Create(ctx context.Context, lp domain.LoginProcess) error

	// Reset rebinds the row to windowID, clears all verification flags and
	// resets the creation time. This is the replace-on-conflict primitive the
	// session state machine relies on.
	Reset(ctx context.Context, username, windowID string, at time.Time) error

	// SetTwoFAVerified marks the two-factor gate as passed.
	SetTwoFAVerified(ctx context.Context, username string) error

	// DeleteExpired removes rows created before the cutoff (housekeeping).
	DeleteExpired(ctx context.Context, before time.Time) error
}

type Directories interface {
	// Get returns a directory by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (domain.Directory, error)

	// ListChildren returns the immediate subdirectories of a directory.
	ListChildren(ctx context.Context, parentID int64) ([]domain.Directory, error)

	// ListByUser returns all directories owned by a username, oldest first.
	ListByUser(ctx context.Context, username string) ([]domain.Directory, error)

	// Create inserts a directory and returns the generated id.
	// ErrAlreadyExists when (parent_id, name, username) is taken.
	Create(ctx context.Context, d domain.Directory) (int64, error)

	// Delete removes a single directory row.
	Delete(ctx context.Context, id int64) error
}

type Files interface {
	// Get returns a file row by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (domain.File, error)

	// ListByDirectory returns the immediate files of a directory.
	ListByDirectory(ctx context.Context, directoryID int64) ([]domain.File, error)

	// FindDuplicates returns rows matching (directory_id, name, content_type).
	FindDuplicates(ctx context.Context, directoryID int64, name, contentType string) ([]domain.File, error)

	// Create inserts a file row (blob key empty) and returns the generated id.
	Create(ctx context.Context, f domain.File) (int64, error)

	// SetBlobKey persists the derived blob key on an existing row.
	SetBlobKey(ctx context.Context, id int64, key string) error

	// Delete removes a single file row.
	Delete(ctx context.Context, id int64) error
}
