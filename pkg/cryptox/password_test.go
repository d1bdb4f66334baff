package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyPassword("correct horse battery staple", hash))
	require.ErrorIs(t, VerifyPassword("wrong password", hash), ErrPasswordMismatch)
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same input")
	require.NoError(t, err)
	b, err := HashPassword("same input")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	require.Error(t, VerifyPassword("x", "not-a-phc-string"))
	require.Error(t, VerifyPassword("x", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}

func TestGenerateDigits(t *testing.T) {
	t.Parallel()

	code, err := GenerateDigits(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		require.True(t, c >= '0' && c <= '9')
	}

	_, err = GenerateDigits(0)
	require.Error(t, err)
}

func TestGenerateBase32Secret(t *testing.T) {
	t.Parallel()

	s, err := GenerateBase32Secret(20)
	require.NoError(t, err)
	require.NotEmpty(t, s)
	require.NotContains(t, s, "=")

	other, err := GenerateBase32Secret(20)
	require.NoError(t, err)
	require.NotEqual(t, s, other)
}
