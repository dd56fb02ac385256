package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "VOLUNTEER", 480)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "VOLUNTEER", claims.Role)

	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err)
}

func TestAccessTokenRejectsExpiredAndNone(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "ADMIN", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", tok.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", raw)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(14)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword("", "hunter2"))

	hash, err = HashPassword("hunter2", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
}

func TestSecurityCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewSecurityCode(4)
		require.NoError(t, err)
		require.Len(t, code, 4)
		assert.Empty(t, strings.Trim(code, "0123456789"))
	}
	_, err := NewSecurityCode(0)
	assert.Error(t, err)

	assert.True(t, CodesEqual("0427", "0427"))
	assert.False(t, CodesEqual("0427", "427"))
	assert.False(t, CodesEqual("0427", "0428"))
}

func TestRecentSundays(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	// Saturday 20:00 UTC is already Sunday morning in Sydney
	got := RecentSundays(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC), loc, 2)
	assert.Equal(t, []string{"2024-06-02", "2024-05-26"}, got)

	got = RecentSundays(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC), time.UTC, 1)
	assert.Equal(t, []string{"2024-05-26"}, got)
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "2024-06-02", DateString(time.Date(2024, 6, 2, 23, 59, 0, 0, time.UTC), time.UTC))
	_, err := ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestOAuthSession(t *testing.T) {
	raw, err := NewOAuthSession("k", "google", "st", "nn", time.Minute)
	require.NoError(t, err)
	s, err := ParseOAuthSession("k", raw)
	require.NoError(t, err)
	assert.Equal(t, "google", s.Provider)
	assert.Equal(t, "st", s.State)
	assert.Equal(t, "nn", s.Nonce)

	_, err = ParseOAuthSession("other", raw)
	assert.Error(t, err)

	expired, err := NewOAuthSession("k", "google", "st", "nn", -time.Minute)
	require.NoError(t, err)
	_, err = ParseOAuthSession("k", expired)
	assert.Error(t, err)
}
