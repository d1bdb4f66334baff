package cryptox

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
)

// GenerateDigits returns a string of n cryptographically random decimal
// digits, suitable for email verification codes.
func GenerateDigits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("digit count must be positive, got %d", n)
	}

	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		buf[i] = '0' + byte(d.Int64())
	}
	return string(buf), nil
}

// GenerateBase32Secret returns size random bytes encoded as unpadded base32.
// Used for application secrets handed to the client at registration.
func GenerateBase32Secret(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("secret size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
