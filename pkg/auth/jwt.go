package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	Role       string `json:"role"`
	PharmacyID string `json:"pharmacy_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed by the auth service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	switch Role(c.Role) {
	case RolePatient, RolePharmacy, RoleCourier:
	default:
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Role: Role(c.Role), PharmacyID: c.PharmacyID}, nil
}

// Sign issues a token for tests and local tooling.
func Sign(secret, userID string, role Role, pharmacyID string, ttl time.Duration) (string, error) {
	c := claims{
		Role:       string(role),
		PharmacyID: pharmacyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
