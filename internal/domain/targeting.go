package domain

import (
	"sort"
	"time"
)

// Broadcast topics.
const (
	TopicGlobal    = "global"
	TopicAdminRoom = "admin-room"
)

// UserTopic is the room every connection of one account joins.
func UserTopic(accountID string) string { return "user-" + accountID }

// RoleTopic is the room every connection of one role joins.
func RoleTopic(role string) string { return "role-" + role }

// IsExpired reports whether n has passed its expiry at now.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// Targets reports whether the targeting mode of n addresses a.
func (n *Notification) Targets(a *Account) bool {
	switch n.Target {
	case TargetAll:
		return true
	case TargetSpecificUser:
		return n.TargetID != nil && *n.TargetID == a.AccountID
	case TargetRole:
		return n.TargetRole != nil && *n.TargetRole == a.Role
	case TargetTechnicians:
		return a.Role == RoleTechnician
	}
	return false
}

// VisibleTo is the single rule behind both the listing and the unread count.
func (n *Notification) VisibleTo(a *Account, now time.Time) bool {
	return n.IsActive && !n.IsExpired(now) && n.Targets(a)
}

// IsReadBy reports whether accountID has already read n.
func (n *Notification) IsReadBy(accountID string) bool {
	_, ok := n.ReadBy[accountID]
	return ok
}

// MarkRead records the first read by accountID. Later calls are no-ops and
// return false.
func (n *Notification) MarkRead(accountID string, now time.Time) bool {
	if n.IsReadBy(accountID) {
		return false
	}
	if n.ReadBy == nil {
		n.ReadBy = make(map[string]time.Time)
	}
	n.ReadBy[accountID] = now
	return true
}

// Topic is the broadcast room a notification is pushed to.
func (n *Notification) Topic() string {
	switch n.Target {
	case TargetSpecificUser:
		if n.TargetID != nil {
			return UserTopic(*n.TargetID)
		}
	case TargetRole:
		if n.TargetRole != nil {
			return RoleTopic(*n.TargetRole)
		}
	case TargetTechnicians:
		return RoleTopic(RoleTechnician)
	}
	return TopicGlobal
}

// IsDue reports whether an unsent notification should be dispatched at now.
func (n *Notification) IsDue(now time.Time) bool {
	return !n.Sent && n.IsActive && !n.IsExpired(now) && (n.ScheduledFor == nil || !n.ScheduledFor.After(now))
}

// PriorityRank orders priorities; unknown values sort below low.
func PriorityRank(p string) int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// SortForListing orders by priority descending, then newest first, then by
// id descending so pages never shuffle between requests.
func SortForListing(ns []Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		pi, pj := PriorityRank(ns[i].Priority), PriorityRank(ns[j].Priority)
		if pi != pj {
			return pi > pj
		}
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].NotificationID > ns[j].NotificationID
	})
}
