package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisputeAssignTo(t *testing.T) {
	d := &Dispute{Reference: "DP1", Status: DisputeOpen}
	sup := &Account{AccountID: "s1", DisplayName: "Sam", Role: RoleSupport, Status: StatusActive}

	require.NoError(t, d.AssignTo(sup, "admin", t0))
	assert.Equal(t, DisputeInReview, d.Status)
	require.NotNil(t, d.AssignedTo)
	assert.Equal(t, "s1", *d.AssignedTo)
	require.Len(t, d.Comments, 1)
	assert.Equal(t, SystemAuthor, d.Comments[0].AuthorName)
	assert.True(t, d.Comments[0].IsInternal)
	assert.Equal(t, "Dispute assigned to Sam", d.Comments[0].Message)
}

func TestDisputeAssignTo_Rejections(t *testing.T) {
	viewer := &Account{AccountID: "v1", Role: RoleViewer, Status: StatusActive}
	assert.ErrorIs(t, (&Dispute{Status: DisputeOpen}).AssignTo(viewer, "admin", t0), ErrValidation)

	sup := &Account{AccountID: "s1", Role: RoleSupport, Status: StatusActive}
	assert.ErrorIs(t, (&Dispute{Status: DisputeResolved}).AssignTo(sup, "admin", t0), ErrConflict)
}

func TestDisputeResolve(t *testing.T) {
	d := &Dispute{Reference: "DP1", Status: DisputeInReview}
	yes := true

	require.NoError(t, d.Resolve("s1", " refunded call-out fee ", "refund", &yes, t0))
	assert.Equal(t, DisputeResolved, d.Status)
	require.NotNil(t, d.Resolution)
	assert.Equal(t, "refunded call-out fee", d.Resolution.Notes)
	assert.Equal(t, "refund", d.Resolution.ResolutionType)
	assert.True(t, *d.Resolution.CustomerSatisfied)
	assert.Equal(t, "Dispute resolved: refunded call-out fee", d.Comments[0].Message)

	err := d.Resolve("s1", "again", "other", nil, t0)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, d.Comments, 1)
}

func TestDisputeResolve_RequiresNotes(t *testing.T) {
	d := &Dispute{Status: DisputeOpen}
	assert.ErrorIs(t, d.Resolve("s1", "  ", "", nil, t0), ErrValidation)
	assert.Equal(t, DisputeOpen, d.Status)
}

func TestDisputeEscalate(t *testing.T) {
	d := &Dispute{Status: DisputeInReview}
	admin := &Account{AccountID: "a1", Role: RoleAdmin, Status: StatusActive}
	sup := &Account{AccountID: "s2", Role: RoleSupport, Status: StatusActive}

	assert.ErrorIs(t, d.Escalate("s1", sup, "needs refund sign-off", t0), ErrValidation)
	require.NoError(t, d.Escalate("s1", admin, "needs refund sign-off", t0))
	assert.Equal(t, DisputeEscalated, d.Status)
	assert.Equal(t, "a1", d.Escalation.EscalatedTo)
}

func TestDisputeAddComment_RequiresMessage(t *testing.T) {
	d := &Dispute{}
	assert.ErrorIs(t, d.AddComment("s1", "Sam", "   ", false, t0), ErrValidation)
	require.NoError(t, d.AddComment("s1", "Sam", "Called the customer", false, t0))
	assert.Equal(t, "Called the customer", d.Comments[0].Message)
	assert.Equal(t, t0, d.UpdatedAt)
}

func TestDisputeQueryMatches(t *testing.T) {
	owner := "s1"
	d := &Dispute{Reference: "DP42", Title: "Overcharged", CustomerEmail: "kim@example.com", Status: DisputeOpen, AssignedTo: &owner}
	assert.True(t, DisputeQuery{Search: "overch"}.Matches(d))
	assert.True(t, DisputeQuery{Search: "kim@"}.Matches(d))
	assert.True(t, DisputeQuery{AssignedTo: "s1", Status: DisputeOpen}.Matches(d))
	assert.False(t, DisputeQuery{AssignedTo: "s2"}.Matches(d))
	assert.False(t, DisputeQuery{Category: "billing"}.Matches(d))
}
