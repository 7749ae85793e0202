package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/pkg/cryptox"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://identity.storefront.test"

func newSigner(t *testing.T, kid string) *jwtx.EdDSASigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestSignAndVerify(t *testing.T) {
	signer := newSigner(t, "kid-1")
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "kid-1", signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims(
		"user-456", "session-1", "shopper@example.com",
		[]string{"pwd"}, 5*time.Minute,
		exampleIssuer, []string{"authenticated"}, now,
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	jwks := keyset.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)

	got, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"authenticated"}).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-456", got.Subject)
	require.Equal(t, "session-1", got.SID)
	require.Equal(t, "shopper@example.com", got.Email)
	require.Equal(t, []string{"pwd"}, got.AMR)
	require.NotEmpty(t, got.ID)
}

func TestVerifyFailures(t *testing.T) {
	signer := newSigner(t, "kid-1")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	now := time.Now().UTC()
	mint := func(t *testing.T, c jwtx.Claims) string {
		t.Helper()
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}
	base := func() jwtx.Claims {
		return jwtx.NewAccessClaims("u1", "s1", "a@b.c", nil, time.Minute, exampleIssuer, []string{"authenticated"}, now)
	}

	t.Run("wrong issuer", func(t *testing.T) {
		c := base()
		c.Issuer = "someone-else"
		_, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).Verify(mint(t, c))
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, []string{"admin"}).Verify(mint(t, base()))
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("expired", func(t *testing.T) {
		v := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).
			WithClock(func() time.Time { return now.Add(time.Hour) })
		_, err := v.Verify(mint(t, base()))
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("within leeway", func(t *testing.T) {
		v := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).
			WithClock(func() time.Time { return now.Add(time.Minute + 2*time.Second) })
		_, err := v.Verify(mint(t, base()))
		require.NoError(t, err)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other := newSigner(t, "kid-2")
		tok, err := other.Sign(base())
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok := mint(t, base())
		parts := strings.Split(tok, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		_, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keyset, exampleIssuer, nil).Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestClaimsValidation(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   "auth",
		Audience: []string{"authenticated", "service"},
	}}

	require.NoError(t, c.ValidateIssuer(""))
	require.ErrorIs(t, c.ValidateIssuer("other"), jwtx.ErrIssuer)
	require.NoError(t, c.ValidateAudience([]string{"nope", "service"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"admin"}), jwtx.ErrAudience)

	now := time.Now().UTC()
	c.NotBefore = jwt.NewNumericDate(now.Add(time.Minute))
	require.ErrorIs(t, c.ValidateExpiryAt(now, 0), jwtx.ErrNotYetValid)
	require.NoError(t, c.ValidateExpiryAt(now, 2*time.Minute))
}

func TestAccessClaimsGetDistinctIDs(t *testing.T) {
	now := time.Now().UTC()
	mint := func() jwtx.Claims {
		return jwtx.NewAccessClaims("user-1", "sid-1", "a@example.com", nil, time.Minute, exampleIssuer, nil, now)
	}

	a, b := mint(), mint()
	require.NotEmpty(t, a.ID)
	require.NotEmpty(t, b.ID)
	require.NotEqual(t, a.ID, b.ID)
}

func TestEphemeralKeyManager(t *testing.T) {
	_, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{})
	require.Error(t, err, "issuer is required")

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, NumKeys: 3})
	require.NoError(t, err)
	require.True(t, km.IsReady())
	require.Equal(t, 3, km.NumSigners())
	require.Len(t, km.KeySet.PublicJWKS().Keys, 3)

	// Every signer must verify through the shared verifier
	for range 10 {
		s := km.GetSigner()
		require.True(t, strings.HasPrefix(s.KID(), "sf-"))
		tok, err := s.Sign(jwtx.NewAccessClaims("u", "s", "e@x.y", nil, time.Minute, exampleIssuer, nil, time.Now()))
		require.NoError(t, err)
		_, err = km.Verifier.Verify(tok)
		require.NoError(t, err)
	}

	capped, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, NumKeys: 50})
	require.NoError(t, err)
	require.Equal(t, 10, capped.NumSigners())
}
