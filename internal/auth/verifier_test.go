package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"redblood/pkg/types"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuer = "https://cognito-idp.us-east-1.amazonaws.com/pool"

type staticKeys struct {
	set jwk.Set
	url string
}

func (s *staticKeys) Lookup(_ context.Context, u string) (jwk.Set, error) {
	s.url = u
	return s.set, nil
}

type signer struct {
	key jwk.Key
}

func newSigner(t *testing.T) (*signer, *staticKeys) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	priv, err := jwk.Import(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, "k1"))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256()))

	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "k1"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256()))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return &signer{key: priv}, &staticKeys{set: set}
}

func (s *signer) sign(t *testing.T, claims map[string]any, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().Subject("user-1").Issuer(issuer).Expiration(exp)
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), s.key))
	require.NoError(t, err)
	return string(signed)
}

func TestVerifyMapsClaims(t *testing.T) {
	s, keys := newSigner(t)
	v := NewVerifier(keys, issuer, "client-1")
	exp := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		claims map[string]any
		want   types.Role
	}{
		{"default donor", map[string]any{}, types.RoleDonor},
		{"admin group", map[string]any{"cognito:groups": []string{"staff", "admin"}}, types.RoleAdmin},
		{"hospital group", map[string]any{"cognito:groups": []string{"hospital"}}, types.RoleHospital},
		{"custom role wins", map[string]any{"custom:role": "recipient", "cognito:groups": []string{"hospital"}}, types.RoleRecipient},
		{"unknown custom role", map[string]any{"custom:role": "root"}, types.RoleDonor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.claims["client_id"] = "client-1"
			tt.claims["username"] = "jane@example.com"

			actor, err := v.Verify(context.Background(), s.sign(t, tt.claims, exp))
			require.NoError(t, err)
			assert.Equal(t, "user-1", actor.UserID)
			assert.Equal(t, "jane@example.com", actor.Email)
			assert.Equal(t, tt.want, actor.Role)
		})
	}

	assert.Equal(t, issuer+"/.well-known/jwks.json", keys.url)
}

func TestVerifyRejects(t *testing.T) {
	s, keys := newSigner(t)
	other, _ := newSigner(t)
	v := NewVerifier(keys, issuer, "client-1")
	ctx := context.Background()

	_, err := v.Verify(ctx, s.sign(t, map[string]any{"client_id": "client-1"}, time.Now().Add(-time.Minute)))
	assert.Equal(t, types.KindUnauthenticated, types.KindOf(err))

	_, err = v.Verify(ctx, s.sign(t, map[string]any{"client_id": "client-2"}, time.Now().Add(time.Hour)))
	assert.Equal(t, types.KindUnauthenticated, types.KindOf(err))

	_, err = v.Verify(ctx, other.sign(t, map[string]any{"client_id": "client-1"}, time.Now().Add(time.Hour)))
	assert.Equal(t, types.KindUnauthenticated, types.KindOf(err))

	_, err = v.Verify(ctx, "not-a-token")
	assert.Equal(t, types.KindUnauthenticated, types.KindOf(err))
}
