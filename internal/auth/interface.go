package auth

import "canopy/internal/domain/models"

// JWTVerifier verifies bearer tokens and returns the actor claims.
// Middleware depends on this interface only.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.ActorClaims, error)

	// Close releases any resources held by the verifier
	Close() error
}
