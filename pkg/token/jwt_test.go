package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", "HS256")

	tok, err := m.Issue("user-1", time.Hour)
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", "HS256")
	tok, err := m.Issue("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", "HS256")
	verifier := NewManager("secret-b", "HS256")

	tok, err := issuer.Issue("user-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	m := NewManager("test-secret", "HS256")
	claims := Claims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := NewManager("test-secret", "HS256")
	claims := Claims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Verify(signed)
	assert.Error(t, err)
}
