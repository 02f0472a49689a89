package model

import "time"

// Roles a principal can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a principal as stored in the `users` table. There are no
// json tags here on purpose: handlers map users to response types so the
// password hash cannot leak through serialization.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique, at most 20 characters.
//  Email        – unique, lower-cased.
//  PasswordHash – bcrypt or argon2id encoded hash.
//  Avatar       – stored relative path (uploads/avatars/<uuid><ext>), nil when unset.
//  Bio          – free text up to 200 characters, nil when unset.
//  Role         – RoleUser or RoleAdmin.
//  IsActive     – disabled accounts cannot authenticate.
//  CreatedAt    – set by the repository on insert.
//  UpdatedAt    – set by the repository on insert and update.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Avatar       *string
	Bio          *string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
