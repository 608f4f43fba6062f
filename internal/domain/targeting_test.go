package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestVisibleTo_TargetingModes(t *testing.T) {
	support := &Account{AccountID: "a1", Role: RoleSupport}
	viewer := &Account{AccountID: "a2", Role: RoleViewer}
	tech := &Account{AccountID: "a3", Role: RoleTechnician}

	tests := []struct {
		name string
		n    Notification
		acc  *Account
		want bool
	}{
		{"all reaches viewer", Notification{Target: TargetAll, IsActive: true}, viewer, true},
		{"role support reaches support", Notification{Target: TargetRole, TargetRole: strPtr(RoleSupport), IsActive: true}, support, true},
		{"role support skips viewer", Notification{Target: TargetRole, TargetRole: strPtr(RoleSupport), IsActive: true}, viewer, false},
		{"specific user matches id", Notification{Target: TargetSpecificUser, TargetID: strPtr("a2"), IsActive: true}, viewer, true},
		{"specific user other id", Notification{Target: TargetSpecificUser, TargetID: strPtr("a2"), IsActive: true}, support, false},
		{"specific user missing id", Notification{Target: TargetSpecificUser, IsActive: true}, support, false},
		{"technicians reaches technician", Notification{Target: TargetTechnicians, IsActive: true}, tech, true},
		{"technicians skips support", Notification{Target: TargetTechnicians, IsActive: true}, support, false},
		{"inactive hidden", Notification{Target: TargetAll, IsActive: false}, viewer, false},
		{"unknown target hidden", Notification{Target: "customers", IsActive: true}, viewer, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.n.VisibleTo(tc.acc, t0))
		})
	}
}

func TestVisibleTo_ExpiredButActiveIsHidden(t *testing.T) {
	past := t0.Add(-time.Second)
	future := t0.Add(time.Hour)
	acc := &Account{AccountID: "a1", Role: RoleViewer}

	expired := Notification{Target: TargetAll, IsActive: true, ExpiresAt: &past}
	live := Notification{Target: TargetAll, IsActive: true, ExpiresAt: &future}
	atBoundary := Notification{Target: TargetAll, IsActive: true, ExpiresAt: &t0}

	assert.False(t, expired.VisibleTo(acc, t0))
	assert.True(t, live.VisibleTo(acc, t0))
	assert.False(t, atBoundary.VisibleTo(acc, t0))
}

func TestMarkRead_Idempotent(t *testing.T) {
	n := Notification{}
	assert.True(t, n.MarkRead("a1", t0))
	assert.False(t, n.MarkRead("a1", t0.Add(time.Minute)))
	assert.Len(t, n.ReadBy, 1)
	assert.Equal(t, t0, n.ReadBy["a1"])

	assert.True(t, n.MarkRead("a2", t0))
	assert.Len(t, n.ReadBy, 2)
}

func TestSortForListing_PriorityThenRecency(t *testing.T) {
	ns := []Notification{
		{NotificationID: "1", Priority: PriorityLow, CreatedAt: t0},
		{NotificationID: "2", Priority: PriorityUrgent, CreatedAt: t0},
		{NotificationID: "3", Priority: PriorityNormal, CreatedAt: t0},
	}
	SortForListing(ns)
	assert.Equal(t, []string{"2", "3", "1"}, ids(ns))

	ns = []Notification{
		{NotificationID: "old", Priority: PriorityHigh, CreatedAt: t0},
		{NotificationID: "new", Priority: PriorityHigh, CreatedAt: t0.Add(time.Minute)},
		{NotificationID: "low", Priority: PriorityLow, CreatedAt: t0.Add(time.Hour)},
	}
	SortForListing(ns)
	assert.Equal(t, []string{"new", "old", "low"}, ids(ns))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, TopicGlobal, (&Notification{Target: TargetAll}).Topic())
	assert.Equal(t, "user-a1", (&Notification{Target: TargetSpecificUser, TargetID: strPtr("a1")}).Topic())
	assert.Equal(t, "role-support", (&Notification{Target: TargetRole, TargetRole: strPtr(RoleSupport)}).Topic())
	assert.Equal(t, "role-technician", (&Notification{Target: TargetTechnicians}).Topic())
}

func TestIsDue(t *testing.T) {
	future := t0.Add(time.Hour)
	assert.True(t, (&Notification{IsActive: true}).IsDue(t0))
	assert.False(t, (&Notification{IsActive: true, ScheduledFor: &future}).IsDue(t0))
	assert.True(t, (&Notification{IsActive: true, ScheduledFor: &future}).IsDue(future))
	assert.False(t, (&Notification{IsActive: true, Sent: true}).IsDue(t0))
	assert.False(t, (&Notification{IsActive: false}).IsDue(t0))
}

func ids(ns []Notification) []string {
	out := make([]string, len(ns))
	for i := range ns {
		out[i] = ns[i].NotificationID
	}
	return out
}
