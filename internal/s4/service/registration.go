package service

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/s4hq/s4/internal/s4/domain"
	"github.com/s4hq/s4/internal/s4/mail"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/cryptox"
)

const (
	verificationCodeDigits = 6
	appSecretPrefix        = "S4_SECRET_"
	appSecretBytes         = 10
	entryDirectoryName     = "entry"
	qrImageSize            = 256
)

var (
	ErrUserExists              = errors.New("user already exists")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrPreconditionNotMet      = errors.New("registration preconditions not met")
)

// RegistrationService runs the pre-registration pipeline: email code
// verification, TOTP enrollment, and the final gated user creation.
// Usernames double as email addresses.
type RegistrationService struct {
	Store  store.Store
	Mailer mail.Mailer

	// Issuer is the TOTP provisioning issuer shown in authenticator apps.
	Issuer string

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func (s *RegistrationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ValidateUsername reports whether the username is still free.
func (s *RegistrationService) ValidateUsername(ctx context.Context, username string) error {
	return s.requireNoUser(ctx, username)
}

// SendVerification issues a fresh 6-digit code and mails it. Re-sending
// overwrites the previous code and clears its verified flag.
func (s *RegistrationService) SendVerification(ctx context.Context, username string) error {
	if err := s.requireNoUser(ctx, username); err != nil {
		return err
	}

	code, err := cryptox.GenerateDigits(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	if err := s.Store.VerificationCodes().Upsert(ctx, username, code, s.now()); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	if err := s.Mailer.SendVerificationCode(username, code); err != nil {
		return fmt.Errorf("failed to send verification mail: %w", err)
	}
	return nil
}

// ValidateVerification compares the submitted code and marks the row verified.
func (s *RegistrationService) ValidateVerification(ctx context.Context, username, code string) error {
	vc, err := s.Store.VerificationCodes().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidVerificationCode
		}
		return fmt.Errorf("failed to load verification code: %w", err)
	}

	if vc.Code != code {
		return ErrInvalidVerificationCode
	}

	if err := s.Store.VerificationCodes().MarkVerified(ctx, username); err != nil {
		return fmt.Errorf("failed to mark verification code: %w", err)
	}
	return nil
}

// SendTwoFACode returns the TOTP provisioning QR as a PNG. The first call
// generates and persists the secret; later calls rebuild the provisioning
// key from the stored secret so the QR stays stable across refreshes.
func (s *RegistrationService) SendTwoFACode(ctx context.Context, username string) ([]byte, error) {
	if err := s.requireNoUser(ctx, username); err != nil {
		return nil, err
	}

	key, err := s.provisioningKey(ctx, username)
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render provisioning image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode provisioning image: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *RegistrationService) provisioningKey(ctx context.Context, username string) (*otp.Key, error) {
	tfc, err := s.Store.TwoFACodes().Get(ctx, username)
	if err == nil {
		// The secret is stored base32-encoded (totp.Key.Secret()); Generate
		// wants the raw bytes back.
		raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tfc.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored secret: %w", err)
		}
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: username,
			Secret:      raw,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild provisioning key: %w", err)
		}
		return key, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load two-factor secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate provisioning key: %w", err)
	}

	err = s.Store.TwoFACodes().Create(ctx, domain.TwoFACode{
		Username:  username,
		Secret:    key.Secret(),
		CreatedAt: s.now(),
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("failed to store two-factor secret: %w", err)
	}
	return key, nil
}

// ValidateTwoFACode checks a TOTP code against the enrolled secret and marks
// the enrollment verified.
func (s *RegistrationService) ValidateTwoFACode(ctx context.Context, username, code string) error {
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

	if err := s.Store.TwoFACodes().MarkVerified(ctx, username); err != nil {
		return fmt.Errorf("failed to mark two-factor verified: %w", err)
	}
	return nil
}

// CreateUser finalizes registration. It is a strict AND-gate: the
// verification code row and the two-factor row must both be verified and no
// user row may exist. On success the user's entry directory is created and
// the generated application secret (distinct from the TOTP secret) is
// returned exactly once.
func (s *RegistrationService) CreateUser(ctx context.Context, username, password, securityQuestion, securityAnswer string) (string, error) {
	if err := s.requireNoUser(ctx, username); err != nil {
		return "", err
	}

	vc, err := s.Store.VerificationCodes().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPreconditionNotMet
		}
		return "", fmt.Errorf("failed to load verification code: %w", err)
	}
	tfc, err := s.Store.TwoFACodes().Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPreconditionNotMet
		}
		return "", fmt.Errorf("failed to load two-factor secret: %w", err)
	}
	if !vc.Verified || !tfc.Verified {
		return "", ErrPreconditionNotMet
	}

	entryID, err := s.ensureEntryDirectory(ctx, username)
	if err != nil {
		return "", err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	secretSuffix, err := cryptox.GenerateBase32Secret(appSecretBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate application secret: %w", err)
	}
	secret := appSecretPrefix + secretSuffix

	err = s.Store.Users().CreateUser(ctx, domain.User{
		Username:         username,
		PasswordHash:     hash,
		SecurityQuestion: securityQuestion,
		SecurityAnswer:   securityAnswer,
		Secret:           secret,
		EntryDirectoryID: entryID,
		CreatedAt:        s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return secret, nil
}

// ensureEntryDirectory creates the user's root directory and collapses any
// duplicates a concurrent registration may have raced in, keeping the oldest.
func (s *RegistrationService) ensureEntryDirectory(ctx context.Context, username string) (int64, error) {
	_, err := s.Store.Directories().Create(ctx, domain.Directory{
		Name:      entryDirectoryName,
		Username:  username,
		CreatedAt: s.now(),
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return 0, fmt.Errorf("failed to create entry directory: %w", err)
	}

	dirs, err := s.Store.Directories().ListByUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to list directories: %w", err)
	}

	var entryID int64
	for _, d := range dirs {
		if d.ParentID != nil || d.Name != entryDirectoryName {
			continue
		}
		if entryID == 0 {
			entryID = d.ID
			continue
		}
		if err := s.Store.Directories().Delete(ctx, d.ID); err != nil {
			return 0, fmt.Errorf("failed to remove duplicate entry directory: %w", err)
		}
	}
	if entryID == 0 {
		return 0, fmt.Errorf("entry directory missing after create")
	}
	return entryID, nil
}

func (s *RegistrationService) requireNoUser(ctx context.Context, username string) error {
	_, err := s.Store.Users().GetUser(ctx, username)
	if err == nil {
		return ErrUserExists
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to load user: %w", err)
}
