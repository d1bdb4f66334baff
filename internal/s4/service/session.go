package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/cryptox"
)

const (
	// DefaultTwoFactorTTL bounds how long a session may wait between the
	// password step and the two-factor step.
	DefaultTwoFactorTTL = 600 * time.Second

	// DefaultSessionTTL bounds the total lifetime of a verified session.
	// Deliberately distinct from DefaultTwoFactorTTL; the two windows are
	// configured independently.
	DefaultSessionTTL = 6000 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = fmt.Errorf("%w: user does not exist", ErrInvalidCredentials)
	ErrPasswordIncorrect  = fmt.Errorf("%w: password incorrect", ErrInvalidCredentials)

	ErrNoSession        = errors.New("no login session")
	ErrSessionExpired   = errors.New("login session expired")
	ErrInvalidCode      = errors.New("invalid two-factor code")
	ErrNoTwoFactorSetup = errors.New("no two-factor secret registered")
)

// SessionService drives the per-user login state machine:
// NoSession -> PasswordVerified -> TwoFactorVerified. Exactly one login
// process row exists per username; a login from a different window rebinds
// that row and clears its verification flags.
type SessionService struct {
	Store store.Store

	// TwoFactorTTL is the window between password login and code submission.
	TwoFactorTTL time.Duration

	// SessionTTL is the total validity window checked by Validate.
	SessionTTL time.Duration

	// RequireBiometric enables the third verification gate. The column and
	// branch exist but the default flow never sets the flag.
	RequireBiometric bool

	// Now is injectable for expiry tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) twoFactorTTL() time.Duration {
	if s.TwoFactorTTL > 0 {
		return s.TwoFactorTTL
	}
	return DefaultTwoFactorTTL
}

func (s *SessionService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

// AuthenticatePassword verifies the password and binds the user's login
// process to windowID. An existing session on a different window is reset,
// which invalidates any in-progress two-factor verification from that other
// window. Same-window repeat calls are idempotent.
func (s *SessionService) AuthenticatePassword(ctx context.Context, username, password, windowID string) error {
	user, err := s.Store.Users().GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrPasswordIncorrect
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}

	lp, err := s.Store.LoginProcesses().Get(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load login process: %w", err)
		}
		return s.createOrRebind(ctx, username, windowID)
	}

	// A login from another window steals the session; the two-factor flag
	// earned there is cleared.
	if lp.WindowID != windowID {
		if err := s.Store.LoginProcesses().Reset(ctx, username, windowID, s.now()); err != nil {
			return fmt.Errorf("failed to reset login process: %w", err)
		}
	}
	return nil
}

// createOrRebind inserts a fresh login process, falling back to a reset when
// a concurrent login won the insert race.
func (s *SessionService) createOrRebind(ctx context.Context, username, windowID string) error {
	err := s.Store.LoginProcesses().Create(ctx, domain.LoginProcess{
		Username:  username,
		WindowID:  windowID,
		CreatedAt: s.now(),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrAlreadyExists) {
		if err := s.Store.LoginProcesses().Reset(ctx, username, windowID, s.now()); err != nil {
			return fmt.Errorf("failed to reset login process: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to create login process: %w", err)
}

// SubmitTwoFactor checks a TOTP code against the user's stored secret and
// marks the session as two-factor verified. An expired session is reset to
// the presented window as a side effect.
func (s *SessionService) SubmitTwoFactor(ctx context.Context, username, code, windowID string) error {
	lp, err := s.Store.LoginProcesses().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoSession
		}
		return fmt.Errorf("failed to load login process: %w", err)
	}

	if s.now().Sub(lp.CreatedAt) > s.twoFactorTTL() {
		if err := s.Store.LoginProcesses().Reset(ctx, username, windowID, s.now()); err != nil {
			return fmt.Errorf("failed to reset login process: %w", err)
		}
		return ErrSessionExpired
	}

	if lp.TwoFAVerified {
		return nil
	}

	tfc, err := s.Store.TwoFACodes().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoTwoFactorSetup
		}
		return fmt.Errorf("failed to load two-factor secret: %w", err)
	}

	if !totp.Validate(code, tfc.Secret) {
		return ErrInvalidCode
	}

	if err := s.Store.LoginProcesses().SetTwoFAVerified(ctx, username); err != nil {
		return fmt.Errorf("failed to mark two-factor verified: %w", err)
	}
	return nil
}

// Validate is the authorization gate for every protected operation. It
// returns false when no session exists, the window does not match, the
// session has outlived SessionTTL, or a verification flag is unset. Any
// failure on an existing session resets it to the presented window id —
// a single bad probe invalidates a legitimate in-flight session.
func (s *SessionService) Validate(ctx context.Context, username, windowID string) (bool, error) {
	lp, err := s.Store.LoginProcesses().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load login process: %w", err)
	}

	ok := lp.WindowID == windowID &&
		s.now().Sub(lp.CreatedAt) <= s.sessionTTL() &&
		lp.TwoFAVerified &&
		(!s.RequireBiometric || lp.BiometricVerified)
	if ok {
		return true, nil
	}

	if err := s.Store.LoginProcesses().Reset(ctx, username, windowID, s.now()); err != nil {
		return false, fmt.Errorf("failed to reset login process: %w", err)
	}
	return false, nil
}
