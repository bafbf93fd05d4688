package models

import "time"

// Signed token value and the instant it stops being accepted
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Access and refresh tokens minted together for one user.
// Only the digest of Refresh.Value is ever persisted.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
