package domain

import "time"

// LoginProcess is the server-side record of the current authentication
// attempt for one user, bound to a client-chosen window identifier. Exactly
// one row exists per username; a login from a different window replaces it.
type LoginProcess struct {
	Username          string
	WindowID          string
	TwoFAVerified     bool
	BiometricVerified bool // optional third gate, off by default
	CreatedAt         time.Time
}
