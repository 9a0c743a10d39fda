package sessiontoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newSigner() *Signer {
	return &Signer{
		Secret: []byte("test-secret-at-least-32-bytes-long!!"),
		Issuer: "reportline-login",
		TTL:    time.Hour,
	}
}

func TestSignAndParseRoundTrip(t *testing.T) {
	t.Parallel()

	s := newSigner()
	token, expiresAt, err := s.Sign("01ARZ3NDEKTSV4RRFFQ69G5FAV", "admin", "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", claims.Subject)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "sess-1", claims.ID)
}

func TestSignRequiresAccountID(t *testing.T) {
	t.Parallel()

	_, _, err := newSigner().Sign("  ", "user", "sess")
	require.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	token, _, err := newSigner().Sign("acct", "user", "sess")
	require.NoError(t, err)

	other := newSigner()
	other.Secret = []byte("a-completely-different-secret-value!")
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	s := newSigner()
	token, _, err := s.Sign("acct", "user", "sess")
	require.NoError(t, err)

	s.Issuer = "someone-else"
	_, err = s.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	t.Parallel()

	s := newSigner()
	s.TTL = -time.Minute
	token, _, err := s.Sign("acct", "user", "sess")
	require.NoError(t, err)

	_, err = s.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	s := newSigner()
	for _, input := range []string{"", "   ", "not.a.jwt"} {
		_, err := s.Parse(input)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}
