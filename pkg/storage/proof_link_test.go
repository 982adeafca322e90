package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProofLinkSignerRoundTrip(t *testing.T) {
	signer := NewProofLinkSigner("secret", time.Hour)
	token, err := signer.Sign("proofs/p-1/abc.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ref, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "proofs/p-1/abc.png", ref)
}

func TestProofLinkSignerExpired(t *testing.T) {
	signer := NewProofLinkSigner("secret", time.Hour)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := signer.Sign("proofs/p-1/abc.png")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Verify(token)
	require.ErrorContains(t, err, "expired")
}

func TestProofLinkSignerRejectsTampering(t *testing.T) {
	signer := NewProofLinkSigner("secret", time.Hour)
	token, err := signer.Sign("proofs/p-1/abc.png")
	require.NoError(t, err)

	_, err = signer.Verify(token + "x")
	require.Error(t, err)

	_, err = NewProofLinkSigner("other", time.Hour).Verify(token)
	require.ErrorContains(t, err, "signature")
}
