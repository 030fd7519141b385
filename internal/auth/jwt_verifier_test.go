package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"canopy/internal/domain"
	"canopy/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVerifier(t *testing.T) (*JWKSVerifier, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return newVerifier(kf, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.ActorClaims) string {
	t.Helper()

	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsFor(subject, role string, expires time.Time) models.ActorClaims {
	return models.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: role,
	}
}

func TestVerifyToken(t *testing.T) {
	v, key := testVerifier(t)
	future := time.Now().Add(time.Hour)

	claims, err := v.VerifyToken(sign(t, jwt.SigningMethodES256, key, claimsFor("actor-1", "authenticated", future)))
	require.NoError(t, err)
	assert.Equal(t, "actor-1", claims.GetActorID())

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: sign(t, jwt.SigningMethodES256, key, claimsFor("actor-1", "authenticated", time.Now().Add(-time.Hour)))},
		{name: "missing subject", token: sign(t, jwt.SigningMethodES256, key, claimsFor("", "authenticated", future))},
		{name: "anonymous role", token: sign(t, jwt.SigningMethodES256, key, claimsFor("actor-1", "anon", future))},
		{name: "symmetric algorithm", token: sign(t, jwt.SigningMethodHS256, []byte("secret"), claimsFor("actor-1", "authenticated", future))},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
