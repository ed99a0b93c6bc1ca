package models

import "time"

// User is the authenticated account as reported by the backend
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginRequest is the request structure for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the request structure for account creation
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by login and register
type AuthResult struct {
	Token string `json:"access_token"`
	User  *User  `json:"user"`
}

// Consent holds the per-purpose toggles on the account page
type Consent map[string]bool
