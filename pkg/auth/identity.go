package auth

import (
	"context"
	"errors"
)

type Role string

const (
	RolePatient  Role = "patient"
	RolePharmacy Role = "pharmacy"
	RoleCourier  Role = "courier"
)

// Identity is the (user, role) pair produced by the credential
// verifier. PharmacyID is set only for pharmacy accounts.
type Identity struct {
	UserID     string
	Role       Role
	PharmacyID string
}

// Verifier validates a bearer token. Session issuance lives elsewhere;
// this service only consumes tokens.
type Verifier interface {
	Verify(token string) (Identity, error)
}

var ErrInvalidToken = errors.New("invalid token")

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
