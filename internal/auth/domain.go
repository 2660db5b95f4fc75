package auth

import "time"

// User represents the credential view of an account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
}

// Token is the opaque API credential bound one to one to a user.
type Token struct {
	Key       string
	UserID    int64
	CreatedAt time.Time
}

// String returns the token key.
func (t Token) String() string {
	return t.Key
}
