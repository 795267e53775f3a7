package twofactor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 4226 appendix D vectors for the shared secret "12345678901234567890".
var hotpVectors = []string{
	"755224", "287082", "359152", "969429", "338314",
	"254676", "287922", "162583", "399871", "520489",
}

func TestHOTPReferenceVectors(t *testing.T) {
	secret := []byte("12345678901234567890")
	for counter, want := range hotpVectors {
		assert.Equal(t, want, hotpCode(secret, int64(counter)), "counter %d", counter)
	}
}

func TestVerifyTOTPCurrentStep(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1700000100, 0)

	code := hotpCode(secret, now.Unix()/totpPeriod)
	ok, err := verifyTOTP(secret, code, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Surrounding whitespace from a copy-paste is tolerated.
	ok, err = verifyTOTP(secret, "  "+code+" ", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyTOTPSkewWindow(t *testing.T) {
	secret := []byte("12345678901234567890")
	issued := time.Unix(1700000100, 0)
	code := hotpCode(secret, issued.Unix()/totpPeriod)

	// 250 seconds of drift stays inside the ±300 second window.
	ok, err := verifyTOTP(secret, code, issued.Add(250*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyTOTP(secret, code, issued.Add(-250*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	// 400 seconds of drift falls outside it.
	ok, err = verifyTOTP(secret, code, issued.Add(400*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = verifyTOTP(secret, code, issued.Add(-400*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTOTPRejectsMalformedInput(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1700000100, 0)

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		ok, err := verifyTOTP(secret, code, now)
		require.NoError(t, err, "input %q", code)
		assert.False(t, ok, "input %q", code)
	}
}

func TestVerifyTOTPEmptySecret(t *testing.T) {
	_, err := verifyTOTP(nil, "123456", time.Unix(1700000100, 0))
	require.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	raw, encoded, err := generateSecret()
	require.NoError(t, err)
	assert.Len(t, raw, totpSecretBytes)
	assert.NotContains(t, encoded, "=")

	_, again, err := generateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again)
}

func TestProvisioningURI(t *testing.T) {
	uri := provisioningURI("HarvestLink", "amara@harvest.test", "JBSWY3DPEHPK3PXP")
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/HarvestLink:amara@harvest.test?"))
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=HarvestLink")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "algorithm=SHA1")
}
