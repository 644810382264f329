// Package auth adapts the identity provider: Cognito account flows and access token verification.
package auth

import (
	"context"
	"fmt"

	"redblood/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// KeySource resolves the signing keys published at a JWKS url. *jwk.Cache satisfies it.
type KeySource interface {
	Lookup(ctx context.Context, u string) (jwk.Set, error)
}

// Verifier validates access tokens and turns their claims into an Actor.
type Verifier struct {
	keys     KeySource
	jwksURL  string
	issuer   string
	clientID string
}

// NewVerifier checks tokens against the issuer's /.well-known/jwks.json. An empty clientID
// skips the client_id check.
func NewVerifier(keys KeySource, issuer, clientID string) *Verifier {
	return &Verifier{
		keys:     keys,
		jwksURL:  JWKSURL(issuer),
		issuer:   issuer,
		clientID: clientID,
	}
}

func JWKSURL(issuer string) string {
	return fmt.Sprintf("%s/.well-known/jwks.json", issuer)
}

func (v *Verifier) Verify(ctx context.Context, accessToken string) (types.Actor, error) {
	set, err := v.keys.Lookup(ctx, v.jwksURL)
	if err != nil {
		return types.Actor{}, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse([]byte(accessToken), opts...)
	if err != nil {
		return types.Actor{}, types.WrapError(types.KindUnauthenticated, "invalid access token", err)
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return types.Actor{}, types.NewError(types.KindUnauthenticated, "access token has no subject")
	}

	if v.clientID != "" {
		var clientID string
		if err := token.Get("client_id", &clientID); err != nil || clientID != v.clientID {
			return types.Actor{}, types.NewError(types.KindUnauthenticated, "access token was issued to another client")
		}
	}

	// Cognito access tokens carry username rather than email.
	var email string
	if err := token.Get("email", &email); err != nil {
		_ = token.Get("username", &email)
	}

	return types.Actor{UserID: userID, Email: email, Role: roleOf(token)}, nil
}

// roleOf prefers a custom:role claim and falls back to Cognito group membership.
func roleOf(token jwt.Token) types.Role {
	var custom string
	if err := token.Get("custom:role", &custom); err == nil {
		if r := types.Role(custom); r.Valid() {
			return r
		}
	}

	var groups []any
	if err := token.Get("cognito:groups", &groups); err != nil {
		return types.RoleDonor
	}

	role := types.RoleDonor
	for _, g := range groups {
		name, _ := g.(string)
		switch types.Role(name) {
		case types.RoleAdmin:
			return types.RoleAdmin
		case types.RoleHospital, types.RoleRecipient:
			role = types.Role(name)
		}
	}
	return role
}
