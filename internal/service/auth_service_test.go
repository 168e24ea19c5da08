package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID string, role models.UserRole) *models.JWTClaims {
	now := time.Now()
	return &models.JWTClaims{
		UserID:   userID,
		Role:     role,
		FullName: "Rina Putri",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "campus-idp",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "campus-idp"})
	token := signTestToken(t, "secret", validClaims("user-1", models.RoleAdmin))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestAuthServiceValidateTokenFallsBackToSubject(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	claims := validClaims("", "")
	claims.Subject = "user-9"
	token := signTestToken(t, "secret", claims)

	parsed, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", parsed.UserID)
	assert.Equal(t, models.RoleUser, parsed.Role)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "campus-idp"})

	expired := validClaims("user-1", models.RoleUser)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims("user-1", models.RoleUser)
	wrongIssuer.Issuer = "someone-else"

	noExpiry := validClaims("user-1", models.RoleUser)
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"bad signature": signTestToken(t, "other-secret", validClaims("user-1", models.RoleUser)),
		"expired":       signTestToken(t, "secret", expired),
		"wrong issuer":  signTestToken(t, "secret", wrongIssuer),
		"no expiry":     signTestToken(t, "secret", noExpiry),
		"garbage":       "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
