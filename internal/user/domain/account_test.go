package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storehub/backend/internal/platform/rbac"
)

func TestAccount_CanAuthenticate(t *testing.T) {
	now := time.Now()
	assert.True(t, (&Account{Active: true}).CanAuthenticate())
	assert.False(t, (&Account{Active: false}).CanAuthenticate())
	assert.False(t, (&Account{Active: true, DeletedAt: &now}).CanAuthenticate())
}

func TestAccount_Validate(t *testing.T) {
	valid := Account{ID: "a1", Username: "alice", PasswordHash: "$2a$", Role: rbac.RoleUser}
	assert.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*Account){
		"id":       func(a *Account) { a.ID = "" },
		"username": func(a *Account) { a.Username = "  " },
		"hash":     func(a *Account) { a.PasswordHash = "" },
		"role":     func(a *Account) { a.Role = "" },
	} {
		a := valid
		mutate(&a)
		assert.Error(t, a.Validate(), name)
	}
}
