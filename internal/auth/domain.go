package auth

import "github.com/billtrack/billtrack/internal/shared"

// Account is an actor together with its stored credential.
type Account struct {
	Actor        shared.Actor
	PasswordHash string
}

// RegisterInput carries a self-service registration.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}
