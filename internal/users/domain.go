package users

import "time"

// User represents an account identified by email address.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// String returns the email, which is the user's identifying field.
func (u User) String() string {
	return u.Email
}

// CreateUserParams carries the fields accepted when creating a user.
type CreateUserParams struct {
	Email       string
	Password    string
	Name        string
	IsStaff     bool
	IsSuperuser bool
}

// UpdateProfileParams carries optional profile changes. Nil fields are left untouched.
type UpdateProfileParams struct {
	Email    *string
	Name     *string
	Password *string
}
