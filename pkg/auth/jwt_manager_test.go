package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate("user-1", "teacher")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "teacher", claims.Role)

	exp, err := m.Expiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)
}

func TestVerifyRejectsForeignAndExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := other.Generate("user-1", "student")
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.Error(t, err)

	expired := NewJWTManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err = expired.Generate("user-1", "student")
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = m.Verify("not-a-jwt")
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	token, err := ExtractToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "bearer header-token")
	token, err = ExtractToken(r)
	require.NoError(t, err)
	assert.Equal(t, "header-token", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	_, err = ExtractToken(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic xyz")
	_, err = ExtractTokenFromHeader(r)
	assert.Error(t, err)
}
