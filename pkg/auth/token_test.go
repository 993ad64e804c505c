package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/enums"
)

func testJWTConfig(minutes int) config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "coown", ExpirationMinutes: minutes}
}

func mustVerifier(t *testing.T, cfg config.JWTConfig) *Verifier {
	t.Helper()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestMintAndVerify(t *testing.T) {
	cfg := testJWTConfig(30)
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.PlatformRoleAdmin, JTI: "session-1"})
	require.NoError(t, err)

	principal, err := mustVerifier(t, cfg).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: userID, Role: enums.PlatformRoleAdmin, SessionID: "session-1"}, principal)
}

func TestVerifyRejects(t *testing.T) {
	cfg := testJWTConfig(15)
	valid, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.PlatformRoleUser})
	require.NoError(t, err)
	expired, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.PlatformRoleUser})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	foreign, err := MintAccessToken(other, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.PlatformRoleUser})
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		Role: enums.PlatformRoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{
		Role:             enums.PlatformRoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer, Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	v := mustVerifier(t, cfg)
	for name, token := range map[string]string{
		"tampered":    valid + "x",
		"expired":     expired,
		"issuer":      foreign,
		"subject":     badSubject,
		"alg none":    noneAlg,
		"not a token": "abc",
	} {
		_, err := v.Verify(token)
		assert.Error(t, err, name)
	}
}

func TestVerifyToleratesSmallClockSkew(t *testing.T) {
	cfg := testJWTConfig(1)
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Minute-10*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.PlatformRoleUser})
	require.NoError(t, err)
	_, err = mustVerifier(t, cfg).Verify(token)
	assert.NoError(t, err)
}

func TestMintAccessTokenInvalidPayload(t *testing.T) {
	cfg := testJWTConfig(5)
	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: ""})
	assert.Error(t, err)
	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.PlatformRoleUser})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWTConfig(0), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.PlatformRoleUser})
	assert.Error(t, err)
}

func TestNewVerifierRequiresSecretAndIssuer(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{Issuer: "coown"})
	assert.Error(t, err)
	_, err = NewVerifier(config.JWTConfig{Secret: "secret"})
	assert.Error(t, err)
}
