package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/s4hq/s4/internal/s4/mail"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/internal/s4/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

// registerUser runs the full registration pipeline and returns the TOTP
// secret so tests can mint valid codes for login.
func registerUser(t *testing.T, st store.Store, username, password string) string {
	t.Helper()
	ctx := context.Background()

	reg := &RegistrationService{
		Store:  st,
		Mailer: &mail.LogMailer{},
		Issuer: "S4",
	}

	require.NoError(t, reg.SendVerification(ctx, username))
	vc, err := st.VerificationCodes().Get(ctx, username)
	require.NoError(t, err)
	require.NoError(t, reg.ValidateVerification(ctx, username, vc.Code))

	qr, err := reg.SendTwoFACode(ctx, username)
	require.NoError(t, err)
	require.NotEmpty(t, qr)

	tfc, err := st.TwoFACodes().Get(ctx, username)
	require.NoError(t, err)

	code, err := totp.GenerateCode(tfc.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, reg.ValidateTwoFACode(ctx, username, code))

	secret, err := reg.CreateUser(ctx, username, password, "question", "answer")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	return tfc.Secret
}

// totpCode mints a currently valid code for a stored secret.
func totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}
