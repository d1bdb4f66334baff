package domain

import "time"

// VerificationCode is the emailed 6-digit registration code. One row per
// username; overwritten on every re-send.
type VerificationCode struct {
	Username  string
	Code      string
	Verified  bool
	CreatedAt time.Time
}

// TwoFACode holds the per-user TOTP secret. Created once at two-factor setup
// time, before the user row exists, and reused for every later login.
type TwoFACode struct {
	Username  string
	Secret    string // base32 encoded TOTP secret
	Verified  bool
	CreatedAt time.Time
}
