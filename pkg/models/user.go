package models

import "time"

// User is the display-safe form of an account. The password hash never leaves
// the auth package.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserRef is the part of a user shown next to content they authored.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
