package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("+1 555 0100")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "555")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0100", plain)

	again, err := s.Seal("+1 555 0100")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")
}

func TestSealerPassesLegacyValues(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)
	plain, err := s.Open("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", plain)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSealerRejectsTampering(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)
	sealed, err := s.Seal("secret")
	require.NoError(t, err)

	other, err := NewSealer(strings.Repeat("ab", 32))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestNewSealerKeyLength(t *testing.T) {
	_, err := NewSealer("abcd")
	assert.Error(t, err)
	_, err = NewSealer("not-hex")
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", TokenRequest{Role: RoleGuest, VenueID: 4, ReservationID: 9, TTL: time.Minute})
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleGuest, claims.Role)
	assert.Equal(t, uint64(4), claims.VenueID)
	assert.Equal(t, uint64(9), claims.ReservationID)
	assert.Equal(t, "guest:9", claims.Subject)

	_, err = ParseAccessToken("wrong", tok.Token)
	assert.Error(t, err)
}

func TestAccessTokenValidation(t *testing.T) {
	tests := []struct {
		name string
		req  TokenRequest
	}{
		{"unknown role", TokenRequest{Role: "OWNER", VenueID: 1}},
		{"missing venue", TokenRequest{Role: RoleStaff}},
		{"guest without reservation", TokenRequest{Role: RoleGuest, VenueID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAccessToken("s", tt.req)
			assert.Error(t, err)
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, err := NewAccessToken("s", TokenRequest{Role: RoleStaff, VenueID: 1, TTL: time.Nanosecond})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = ParseAccessToken("s", tok.Token)
	assert.Error(t, err)
}
