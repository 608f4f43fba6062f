package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanPerform(t *testing.T) {
	admin := &Account{AccountID: "adm", Role: RoleAdmin}
	support := &Account{AccountID: "sup", Role: RoleSupport}
	viewer := &Account{AccountID: "v1", Role: RoleViewer}

	assert.True(t, CanPerform(admin, ActionManageAccount, "v1"))
	assert.True(t, CanPerform(support, ActionCreateNotification, ""))
	assert.False(t, CanPerform(support, ActionManageAccount, "v1"))
	assert.False(t, CanPerform(viewer, ActionCreateNotification, ""))

	assert.True(t, CanPerform(viewer, ActionUpdateAccount, "v1"))
	assert.True(t, CanPerform(viewer, ActionViewAccount, "v1"))
	assert.False(t, CanPerform(viewer, ActionUpdateAccount, "other"))
	assert.False(t, CanPerform(viewer, ActionManageAccount, "v1"))
	assert.False(t, CanPerform(viewer, ActionJoinAdminRoom, ""))
	assert.False(t, CanPerform(nil, ActionViewAccount, ""))
}

func TestCanPerform_OperationsStaff(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleSupport} {
		a := &Account{AccountID: "x", Role: role}
		for _, act := range []Action{ActionViewJobs, ActionManageJobs, ActionViewDisputes, ActionManageDisputes, ActionViewAnalytics} {
			assert.True(t, CanPerform(a, act, ""), "%s %s", role, act)
		}
	}
	for _, role := range []string{RoleViewer, RoleTechnician} {
		a := &Account{AccountID: "x", Role: role}
		assert.False(t, CanPerform(a, ActionManageJobs, ""))
		assert.False(t, CanPerform(a, ActionViewDisputes, ""))
		assert.False(t, CanPerform(a, ActionViewAnalytics, ""))
	}
}
