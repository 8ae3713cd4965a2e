package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("correct-secret"))
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, h.Verify("correct-secret", hash))
	assert.False(t, h.Verify("wrong-secret", hash))
	assert.False(t, h.Verify("correct-secret", ""))
	assert.False(t, h.Verify("correct-secret", "not-a-bcrypt-hash"))
}

func TestHasher_Cost(t *testing.T) {
	assert.Equal(t, 12, NewHasher(12).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
}

func TestHasher_BurnDoesNotPanic(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	h.Burn("anything")
	h.Burn("anything-else")
}
