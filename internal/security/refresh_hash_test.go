package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashRefreshToken(t *testing.T) {
	h1 := HashRefreshToken("refresh-1")
	h2 := HashRefreshToken("refresh-1")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashRefreshToken("refresh-2"))
	assert.Len(t, HashRefreshToken(""), 64)
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("refresh-token")

	assert.True(t, RefreshTokenHashEqual("refresh-token", stored))
	assert.False(t, RefreshTokenHashEqual("other-token", stored))
	assert.False(t, RefreshTokenHashEqual("refresh-token", "x"+stored))
	assert.False(t, RefreshTokenHashEqual("", stored))
	assert.False(t, RefreshTokenHashEqual("", ""))
}
