package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	require.Error(t, err)

	_, err = NewIssuer("secret", 0)
	require.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	issuer := newTestIssuer(t)
	id := uuid.New()

	raw, expiresAt, err := issuer.Issue(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	subject, scope, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, id, subject)
	assert.Equal(t, ScopeAccess, scope)
}

func TestChallengeScope(t *testing.T) {
	issuer := newTestIssuer(t)
	id := uuid.New()

	raw, expiresAt, err := issuer.IssueChallenge(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultChallengeTTL), expiresAt, time.Minute)

	subject, scope, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, id, subject)
	assert.Equal(t, ScopeSecondFactor, scope)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t)
	for _, raw := range []string{"", "not-a-token", "aaaa.bbbb.cccc"} {
		_, _, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalid, "input %q", raw)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewIssuer("another-secret", time.Hour)
	require.NoError(t, err)

	raw, _, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	_, _, verifyErr := other.Verify(raw)
	assert.ErrorIs(t, verifyErr, ErrInvalid)
}

func TestVerifyDistinguishesExpiry(t *testing.T) {
	issuer := newTestIssuer(t)

	raw, _, err := issuer.sign(uuid.New(), ScopeAccess, -time.Minute)
	require.NoError(t, err)

	_, _, verifyErr := issuer.Verify(raw)
	// Expired is a distinct outcome so clients re-login instead of
	// discarding the credential as garbage.
	assert.ErrorIs(t, verifyErr, ErrExpired)
	assert.NotErrorIs(t, verifyErr, ErrInvalid)
}
