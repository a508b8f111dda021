package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignToken mints a bearer token the way the platform's auth service
// does, for use in tests.
func SignToken(t *testing.T, signingKey []byte, userId int, ttl time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user-id": userId,
		"exp":     time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	return signed
}
