package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("exp-1", "exports/class_sheet.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	exportID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", exportID)
	assert.Equal(t, "exports/class_sheet.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestSignedURLTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("exp-1", "exports/class_sheet.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "exp-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")
}

func TestSignedURLWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	other := NewSignedURLSigner("different", time.Hour)

	token, _, err := signer.Generate("exp-1", "exports/slip.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Hour)
	signer.ttl = -time.Hour // force an already-expired token

	token, _, err := signer.Generate("exp-1", "exports/slip.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	// Cleanup routines may still read expired tokens.
	exportID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", exportID)
}

func TestSignedURLMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	_, _, _, err := signer.Parse("not-a-token", false)
	require.Error(t, err)
}
