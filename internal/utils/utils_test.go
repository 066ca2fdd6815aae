package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWTManager("secret", time.Hour)
	require.NoError(t, err)

	tok, err := m.GenerateJWT("5d7a514b5d2c12c7449be042", "publisher")
	require.NoError(t, err)

	claims, err := m.ValidateJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "5d7a514b5d2c12c7449be042", claims.UserID)
	assert.Equal(t, "publisher", claims.Role)
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	a, _ := NewJWTManager("a", time.Hour)
	b, _ := NewJWTManager("b", time.Hour)

	tok, err := a.GenerateJWT("u1", "user")
	require.NoError(t, err)

	_, err = b.ValidateJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpired(t *testing.T) {
	m, _ := NewJWTManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.GenerateJWT("u1", "user")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRequiresSecret(t *testing.T) {
	_, err := NewJWTManager("", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	p := NewPasswordHasher(bcrypt.MinCost)
	hash, err := p.Hash("123456")
	require.NoError(t, err)

	assert.NotEqual(t, "123456", hash)
	assert.NoError(t, p.Verify("123456", hash))
	assert.ErrorIs(t, p.Verify("654321", hash), ErrPasswordMismatch)
	assert.Error(t, p.Verify("123456", "not-a-hash"))
	assert.False(t, p.NeedsRehash(hash))
	assert.True(t, NewPasswordHasher(bcrypt.MinCost+1).NeedsRehash(hash))
}

func TestPasswordHasherCostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(bcrypt.MaxCost+1).Cost())
	assert.Equal(t, 12, NewPasswordHasher(12).Cost())
}
