package auth

import (
	"testing"
	"time"

	"github.com/priyav/docshare/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *StaticStore {
	t.Helper()

	ops, err := ProvisionIdentity("opsuser", "ops-pass", "", models.RoleOps)
	require.NoError(t, err)
	client, err := ProvisionIdentity("clientuser", "client-pass", "", models.RoleClient)
	require.NoError(t, err)
	return NewStaticStore(ops, client)
}

func TestLogin_Success(t *testing.T) {
	store := testStore(t)
	authn := NewAuthenticator(store, testTokens(time.Hour, time.Minute))

	cases := []struct {
		username string
		password string
		role     models.Role
	}{
		{"opsuser", "ops-pass", models.RoleOps},
		{"clientuser", "client-pass", models.RoleClient},
	}

	for _, tc := range cases {
		token, role, expires, err := authn.Login(tc.username, tc.password)
		require.NoError(t, err)
		assert.Equal(t, tc.role, role)
		assert.True(t, expires.After(time.Now()))

		// The embedded role must match the stored identity's role.
		identity, err := authn.Authorize(token, tc.role)
		require.NoError(t, err)
		assert.Equal(t, tc.username, identity.Username)
		assert.Equal(t, tc.role, identity.Role)
	}
}

// Wrong password and unknown user must be the same error class; the
// caller learns nothing about which field was wrong.
func TestLogin_InvalidCredentialsUniform(t *testing.T) {
	authn := NewAuthenticator(testStore(t), testTokens(time.Hour, time.Minute))

	_, _, _, err := authn.Login("opsuser", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = authn.Login("nosuchuser", "ops-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = authn.Login("nosuchuser", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// Signature, expiry and role checks flip the outcome independently.
func TestAuthorize_ConditionIndependence(t *testing.T) {
	store := testStore(t)
	tokens := testTokens(time.Hour, time.Minute)
	authn := NewAuthenticator(store, tokens)

	token, _, _, err := authn.Login("clientuser", "client-pass")
	require.NoError(t, err)

	// All conditions hold.
	_, err = authn.Authorize(token, models.RoleClient)
	require.NoError(t, err)

	// Bad signature.
	_, err = authn.Authorize(token[:len(token)-2]+"xx", models.RoleClient)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Expired.
	expiredAuthn := NewAuthenticator(store, testTokens(-1*time.Second, time.Minute))
	expired, _, _, err := expiredAuthn.Login("clientuser", "client-pass")
	require.NoError(t, err)
	_, err = expiredAuthn.Authorize(expired, models.RoleClient)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Genuine token, wrong role: forbidden, not invalid.
	_, err = authn.Authorize(token, models.RoleOps)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorize_AnyRole(t *testing.T) {
	authn := NewAuthenticator(testStore(t), testTokens(time.Hour, time.Minute))

	token, _, _, err := authn.Login("opsuser", "ops-pass")
	require.NoError(t, err)

	identity, err := authn.Authorize(token, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleOps, identity.Role)
}

// A token for a user that has since been deprovisioned fails closed.
func TestAuthorize_UnknownSubject(t *testing.T) {
	tokens := testTokens(time.Hour, time.Minute)
	authn := NewAuthenticator(testStore(t), tokens)

	token, _, err := tokens.NewSessionToken("ghost", models.RoleOps)
	require.NoError(t, err)

	_, err = authn.Authorize(token, models.RoleOps)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestProvisionIdentity_HashPrecedence(t *testing.T) {
	hashed, err := ProvisionIdentity("u", "pw", "", models.RoleOps)
	require.NoError(t, err)
	assert.NotEqual(t, "pw", hashed.PasswordHash)

	explicit, err := ProvisionIdentity("u", "ignored", hashed.PasswordHash, models.RoleOps)
	require.NoError(t, err)
	assert.Equal(t, hashed.PasswordHash, explicit.PasswordHash)
}
