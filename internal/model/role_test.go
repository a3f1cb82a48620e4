package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleFromStringUnknownNeverGrantsAdmin(t *testing.T) {
	assert.Equal(t, RoleAdmin, RoleFromString("administrateur"))
	assert.Equal(t, RoleUser, RoleFromString("utilisateur"))
	assert.Equal(t, RoleUser, RoleFromString(""))
	assert.Equal(t, RoleUser, RoleFromString("ADMIN"))
	assert.Equal(t, RoleUser, RoleFromString("root"))
}

func TestRoleIsAdmin(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleUser.IsAdmin())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusApproved.Valid())
	assert.True(t, StatusRejected.Valid())
	assert.False(t, Status("annulee").Valid())
	assert.False(t, Status("").Valid())
}
