package domain

// Action names a protected operation.
type Action string

const (
	ActionListAccounts         Action = "accounts:list"
	ActionViewAccount          Action = "accounts:view"
	ActionCreateAccount        Action = "accounts:create"
	ActionUpdateAccount        Action = "accounts:update"
	ActionManageAccount        Action = "accounts:manage" // role, status, permissions
	ActionDeleteAccount        Action = "accounts:delete"
	ActionCreateNotification   Action = "notifications:create"
	ActionDeleteNotification   Action = "notifications:delete"
	ActionViewNotificationStat Action = "notifications:stats"
	ActionSweepNotifications   Action = "notifications:sweep"
	ActionJoinAdminRoom        Action = "realtime:admin-room"
	ActionViewJobs             Action = "jobs:view"
	ActionManageJobs           Action = "jobs:manage"
	ActionViewDisputes         Action = "disputes:view"
	ActionManageDisputes       Action = "disputes:manage"
	ActionViewAnalytics        Action = "analytics:view"
)

var roleActions = map[string]map[Action]bool{
	RoleAdmin: {
		ActionListAccounts:         true,
		ActionViewAccount:          true,
		ActionCreateAccount:        true,
		ActionUpdateAccount:        true,
		ActionManageAccount:        true,
		ActionDeleteAccount:        true,
		ActionCreateNotification:   true,
		ActionDeleteNotification:   true,
		ActionViewNotificationStat: true,
		ActionSweepNotifications:   true,
		ActionJoinAdminRoom:        true,
		ActionViewJobs:             true,
		ActionManageJobs:           true,
		ActionViewDisputes:         true,
		ActionManageDisputes:       true,
		ActionViewAnalytics:        true,
	},
	RoleSupport: {
		ActionListAccounts:         true,
		ActionViewAccount:          true,
		ActionCreateNotification:   true,
		ActionDeleteNotification:   true,
		ActionViewNotificationStat: true,
		ActionJoinAdminRoom:        true,
		ActionViewJobs:             true,
		ActionManageJobs:           true,
		ActionViewDisputes:         true,
		ActionManageDisputes:       true,
		ActionViewAnalytics:        true,
	},
}

// ownerActions are granted to any role when the account acts on itself.
var ownerActions = map[Action]bool{
	ActionViewAccount:   true,
	ActionUpdateAccount: true,
}

// CanPerform is the one authorization predicate. resourceOwnerID is the
// account the action targets, or "" when the action is not owner-scoped.
func CanPerform(a *Account, action Action, resourceOwnerID string) bool {
	if a == nil {
		return false
	}
	if roleActions[a.Role][action] {
		return true
	}
	return resourceOwnerID != "" && resourceOwnerID == a.AccountID && ownerActions[action]
}
