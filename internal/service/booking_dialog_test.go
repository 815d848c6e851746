package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

func TestBookingDialogSingleOpenState(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	dialog := NewBookingDialog(f.svc, teacher())

	require.NoError(t, dialog.Open(DialogAccepting, "s1"))
	require.ErrorIs(t, dialog.Open(DialogRejecting, "s1"), ErrDialogBusy)
	assert.Equal(t, DialogAccepting, dialog.State())

	dialog.Close()
	assert.Equal(t, DialogClosed, dialog.State())
	require.ErrorIs(t, dialog.Edit(DialogForm{}), ErrDialogClosed)
	_, err := dialog.Submit(context.Background())
	require.ErrorIs(t, err, ErrDialogClosed)
}

func TestBookingDialogFailedSubmitKeepsPayload(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusRequested, at(4, 9, 0)))
	dialog := NewBookingDialog(f.svc, teacher())
	require.NoError(t, dialog.Open(DialogRejecting, "s1"))
	require.NoError(t, dialog.Edit(DialogForm{Reason: "too short"}))

	_, err := dialog.Submit(context.Background())
	require.ErrorIs(t, err, appErrors.ErrValidation)
	snap := dialog.Snapshot()
	assert.Equal(t, DialogRejecting, snap.State)
	require.NotNil(t, snap.Form)
	assert.Equal(t, "too short", snap.Form.Reason)
	assert.Equal(t, "reason must be at least 10 characters", snap.Error)
	assert.Zero(t, f.writer.count())

	require.NoError(t, dialog.Edit(DialogForm{Reason: "Not available that day"}))
	_, err = dialog.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DialogSnapshot{State: DialogClosed}, dialog.Snapshot())
	assert.NoError(t, dialog.Err())
}

func TestBookingDialogSelectSlotOnlyWhileRescheduling(t *testing.T) {
	f := newBookingFixture(sessionFixture("s1", models.SessionStatusScheduled, at(4, 9, 0)))
	target := slot(6, 10, 0)
	f.slots.result = models.SlotResult{Slots: []models.AvailableSlot{target}}
	dialog := NewBookingDialog(f.svc, student())

	require.ErrorIs(t, dialog.SelectSlot(target, testLoc), ErrDialogClosed)
	state, ok := DialogStateFor(models.SessionActionReschedule)
	require.True(t, ok)
	require.NoError(t, dialog.Open(state, "s1"))
	require.NoError(t, dialog.SelectSlot(target, testLoc))
	assert.Equal(t, "2026-03-06", dialog.Snapshot().Form.Date)

	session, err := dialog.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, DialogClosed, dialog.State())
}

func TestDialogStateFor(t *testing.T) {
	state, ok := DialogStateFor(models.SessionActionCancel)
	assert.True(t, ok)
	assert.Equal(t, DialogCancelling, state)
	_, ok = DialogStateFor(models.SessionAction("archive"))
	assert.False(t, ok)
}
