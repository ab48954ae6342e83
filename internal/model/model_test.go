package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleIsAdmin(t *testing.T) {
	assert.False(t, RoleUser.IsAdmin())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperadmin.IsAdmin())
}

func TestEventCapacity(t *testing.T) {
	unlimited := &Event{}
	assert.True(t, unlimited.Unlimited())
	assert.False(t, unlimited.IsFull(1_000_000))

	limit := 2
	limited := &Event{RegistrationLimit: &limit}
	assert.False(t, limited.Unlimited())
	assert.False(t, limited.IsFull(1))
	assert.True(t, limited.IsFull(2))
	assert.True(t, limited.IsFull(3))
}

func TestRegistrationActive(t *testing.T) {
	assert.True(t, (&Registration{Status: StatusConfirmed}).Active())
	assert.True(t, (&Registration{Status: StatusWaitlisted}).Active())
	assert.False(t, (&Registration{Status: StatusCancelled}).Active())
}
