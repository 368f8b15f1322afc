// Package token provides the JWT signing/parsing primitives the Auth
// Verifier builds on. Issuance lives here only so tests and local tooling
// can mint tokens; in production the access-token issuer is the external
// auth service the gateway only verifies against (spec §1).
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeAccess is the only token type the gateway accepts.
const TypeAccess = "access"

// Claims is the claim set spec §4.C requires: subject, issued_at,
// expires_at, type, and jwt_id.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Manager verifies (and, for tests/tooling, issues) JWTs against a single
// HMAC secret. The algorithm is fixed to the configured one; a token signed
// with any other method is rejected.
type Manager struct {
	secret []byte
	alg    string
}

func NewManager(secret, alg string) *Manager {
	if alg == "" {
		alg = "HS256"
	}
	return &Manager{secret: []byte(secret), alg: alg}
}

// Issue mints an access token for subject with the given lifetime. Used by
// tests and local dev tooling only.
func (m *Manager) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        subject + "-" + now.Format("20060102150405.000000000"),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(signingMethod(m.alg), claims)
	return tok.SignedString(m.secret)
}

// Verify parses and validates tokenString: signature, algorithm, expiry,
// and type == "access". It does not check revocation — that is the
// caller's job against the Session Cache's revocation set.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.alg {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != TypeAccess {
		return nil, errors.New("wrong token type")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

func signingMethod(alg string) jwt.SigningMethod {
	switch alg {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
