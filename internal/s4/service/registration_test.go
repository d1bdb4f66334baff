package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/s4hq/s4/internal/s4/mail"
	"github.com/stretchr/testify/require"
)

func TestRegistrationPipeline(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	reg := &RegistrationService{Store: st, Mailer: &mail.LogMailer{}, Issuer: "S4"}

	t.Run("full pipeline creates user with entry directory", func(t *testing.T) {
		secret := registerUser(t, st, "alice@example.com", "hunter2!")
		require.NotEmpty(t, secret)

		user, err := st.Users().GetUser(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(user.Secret, "S4_SECRET_"))
		require.NotEqual(t, secret, user.Secret[len("S4_SECRET_"):])
		require.NotZero(t, user.EntryDirectoryID)

		entry, err := st.Directories().Get(ctx, user.EntryDirectoryID)
		require.NoError(t, err)
		require.Equal(t, "entry", entry.Name)
		require.Nil(t, entry.ParentID)
	})

	t.Run("existing username blocks every pre-registration step", func(t *testing.T) {
		require.ErrorIs(t, reg.ValidateUsername(ctx, "alice@example.com"), ErrUserExists)
		require.ErrorIs(t, reg.SendVerification(ctx, "alice@example.com"), ErrUserExists)
		_, err := reg.SendTwoFACode(ctx, "alice@example.com")
		require.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("fresh username passes", func(t *testing.T) {
		require.NoError(t, reg.ValidateUsername(ctx, "bob@example.com"))
	})
}

func TestCreateUserGate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	reg := &RegistrationService{Store: st, Mailer: &mail.LogMailer{}, Issuer: "S4"}

	t.Run("without any verification", func(t *testing.T) {
		_, err := reg.CreateUser(ctx, "bob@example.com", "pw", "q", "a")
		require.ErrorIs(t, err, ErrPreconditionNotMet)
	})

	t.Run("mail verified but two-factor not", func(t *testing.T) {
		require.NoError(t, reg.SendVerification(ctx, "bob@example.com"))
		vc, err := st.VerificationCodes().Get(ctx, "bob@example.com")
		require.NoError(t, err)
		require.NoError(t, reg.ValidateVerification(ctx, "bob@example.com", vc.Code))

		_, err = reg.CreateUser(ctx, "bob@example.com", "pw", "q", "a")
		require.ErrorIs(t, err, ErrPreconditionNotMet)
	})

	t.Run("two-factor enrolled but not verified", func(t *testing.T) {
		_, err := reg.SendTwoFACode(ctx, "bob@example.com")
		require.NoError(t, err)

		_, err = reg.CreateUser(ctx, "bob@example.com", "pw", "q", "a")
		require.ErrorIs(t, err, ErrPreconditionNotMet)
	})

	t.Run("all gates open", func(t *testing.T) {
		tfc, err := st.TwoFACodes().Get(ctx, "bob@example.com")
		require.NoError(t, err)
		require.NoError(t, reg.ValidateTwoFACode(ctx, "bob@example.com", totpCode(t, tfc.Secret)))

		secret, err := reg.CreateUser(ctx, "bob@example.com", "pw", "q", "a")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(secret, "S4_SECRET_"))
	})

	t.Run("second create is rejected", func(t *testing.T) {
		_, err := reg.CreateUser(ctx, "bob@example.com", "pw", "q", "a")
		require.ErrorIs(t, err, ErrUserExists)
	})
}

func TestVerificationCodes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	reg := &RegistrationService{Store: st, Mailer: &mail.LogMailer{}, Issuer: "S4"}

	t.Run("wrong code", func(t *testing.T) {
		require.NoError(t, reg.SendVerification(ctx, "carol@example.com"))
		err := reg.ValidateVerification(ctx, "carol@example.com", "not-it")
		require.ErrorIs(t, err, ErrInvalidVerificationCode)
	})

	t.Run("no code issued", func(t *testing.T) {
		err := reg.ValidateVerification(ctx, "nobody@example.com", "123456")
		require.ErrorIs(t, err, ErrInvalidVerificationCode)
	})

	t.Run("re-send clears a prior verification", func(t *testing.T) {
		vc, err := st.VerificationCodes().Get(ctx, "carol@example.com")
		require.NoError(t, err)
		require.NoError(t, reg.ValidateVerification(ctx, "carol@example.com", vc.Code))

		require.NoError(t, reg.SendVerification(ctx, "carol@example.com"))
		vc, err = st.VerificationCodes().Get(ctx, "carol@example.com")
		require.NoError(t, err)
		require.False(t, vc.Verified)
	})
}

func TestSendTwoFACodeIsStable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	reg := &RegistrationService{Store: st, Mailer: &mail.LogMailer{}, Issuer: "S4"}

	first, err := reg.SendTwoFACode(ctx, "dave@example.com")
	require.NoError(t, err)

	before, err := st.TwoFACodes().Get(ctx, "dave@example.com")
	require.NoError(t, err)

	// A refresh rebuilds the QR from the stored secret instead of rotating it.
	second, err := reg.SendTwoFACode(ctx, "dave@example.com")
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))

	after, err := st.TwoFACodes().Get(ctx, "dave@example.com")
	require.NoError(t, err)
	require.Equal(t, before.Secret, after.Secret)

	code, err := totp.GenerateCode(after.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, reg.ValidateTwoFACode(ctx, "dave@example.com", code))
}
