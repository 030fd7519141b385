package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims is the JWT claim set accepted from the identity provider.
// The subject identifies the actor recorded in created_by, updated_by and deleted_by.
type ActorClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "anon" tokens are rejected
}

// GetActorID returns the actor id from the subject claim
func (c *ActorClaims) GetActorID() string {
	return c.Subject
}
