package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user (UUID string).
	ID string `json:"id" db:"id"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is stored lower-cased and is
	// unique across all accounts regardless of case.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the public projection of a User returned by the auth endpoints.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary returns the public projection of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
