package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatusAllows(t *testing.T) {
	cases := []struct {
		status SessionStatus
		action SessionAction
		want   bool
	}{
		{SessionStatusRequested, SessionActionAccept, true},
		{SessionStatusRequested, SessionActionReject, true},
		{SessionStatusScheduled, SessionActionAccept, false},
		{SessionStatusAccepted, SessionActionReject, false},
		{SessionStatusRequested, SessionActionCancel, true},
		{SessionStatusScheduled, SessionActionCancel, true},
		{SessionStatusScheduled, SessionActionReschedule, true},
		{SessionStatusOngoing, SessionActionCancel, false},
		{SessionStatusCompleted, SessionActionReschedule, false},
		{SessionStatusCancelled, SessionActionCancel, false},
		{SessionStatusRejected, SessionActionAccept, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.status.Allows(tc.action), "%s/%s", tc.status, tc.action)
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.True(t, SessionStatusCompleted.Terminal())
	assert.True(t, SessionStatusRejected.Terminal())
	assert.True(t, SessionStatusCancelled.Terminal())
	assert.False(t, SessionStatusScheduled.Terminal())
}

func TestParseSessionStatusRejectsUnknown(t *testing.T) {
	_, err := ParseSessionStatus("pending")
	require.Error(t, err)
	status, err := ParseSessionStatus("ongoing")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusOngoing, status)
}

func TestSessionValidateRequiresEndAfterStart(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := Session{ID: "s1", StartTime: start, EndTime: start, Status: SessionStatusRequested}
	require.Error(t, s.Validate())

	s.EndTime = start.Add(DefaultSessionDuration)
	require.NoError(t, s.Validate())
	assert.Equal(t, 75*time.Minute, s.Duration())
}

func TestSessionIsJoinable(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	s := Session{
		ID:          "s1",
		StartTime:   start,
		EndTime:     start.Add(DefaultSessionDuration),
		Status:      SessionStatusScheduled,
		MeetingLink: "https://meet.example.com/abc",
	}

	assert.True(t, s.IsJoinable(time.Date(2026, 3, 2, 7, 0, 0, 0, loc), loc))
	assert.False(t, s.IsJoinable(time.Date(2026, 3, 1, 23, 0, 0, 0, loc), loc))

	s.Status = SessionStatusOngoing
	assert.True(t, s.IsJoinable(start, loc))

	s.Status = SessionStatusCompleted
	assert.False(t, s.IsJoinable(start, loc))

	s.Status = SessionStatusScheduled
	s.MeetingLink = ""
	assert.False(t, s.IsJoinable(start, loc))
}

func TestSessionIsParticipant(t *testing.T) {
	s := Session{Student: Ref{ID: "stu"}, Teacher: Ref{ID: "tea"}}
	assert.True(t, s.IsParticipant("stu"))
	assert.True(t, s.IsParticipant("tea"))
	assert.False(t, s.IsParticipant("other"))
	assert.False(t, s.IsParticipant(""))
}

func TestDateOfUsesViewerZone(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	utc := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, loc), DateOf(utc, loc))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleTeacher, ParseRole(" Teacher "))
	assert.Equal(t, RoleStudent, ParseRole("STUDENT"))
	assert.Equal(t, RoleAdmin, ParseRole("superadmin"))
	assert.Equal(t, RoleUnknown, ParseRole("parent"))
}
