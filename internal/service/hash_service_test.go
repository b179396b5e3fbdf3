package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashService_HashAndVerify(t *testing.T) {
	svc := NewBcryptHashService(bcrypt.MinCost)

	password := "SecureP@ssw0rd!"
	hash, err := svc.Hash(password)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"), "hash should be bcrypt-formatted")
	assert.NotContains(t, hash, password)

	match, err := svc.Verify(password, hash)
	require.NoError(t, err)
	assert.True(t, match, "correct password should verify")
}

func TestBcryptHashService_VerifyWrongPassword(t *testing.T) {
	svc := NewBcryptHashService(bcrypt.MinCost)

	hash, err := svc.Hash("correct-password")
	require.NoError(t, err)

	match, err := svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, match, "wrong password should not verify")
}

func TestBcryptHashService_UniqueSalts(t *testing.T) {
	svc := NewBcryptHashService(bcrypt.MinCost)

	hash1, err := svc.Hash("same-password")
	require.NoError(t, err)
	hash2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "same password should produce different hashes (different salts)")
}

func TestBcryptHashService_MalformedHash(t *testing.T) {
	svc := NewBcryptHashService(bcrypt.MinCost)

	_, err := svc.Verify("password", "not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestBcryptHashService_CostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHashService(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHashService(99).cost)
	assert.Equal(t, 12, NewBcryptHashService(12).cost)
}

func TestBcryptHashService_PasswordLengthLimit(t *testing.T) {
	svc := NewBcryptHashService(bcrypt.MinCost)

	atLimit := strings.Repeat("a", MaxPasswordBytes)
	hash, err := svc.Hash(atLimit)
	require.NoError(t, err)

	match, err := svc.Verify(atLimit, hash)
	require.NoError(t, err)
	assert.True(t, match)

	// 40 two-byte runes pass a rune-counted max=72 but exceed bcrypt's byte limit.
	_, err = svc.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	match, err = svc.Verify(atLimit+"b", hash)
	require.NoError(t, err)
	assert.False(t, match, "bytes past the limit must not be ignored")
}
