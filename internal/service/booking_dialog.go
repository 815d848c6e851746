package service

import (
	"context"
	"net/http"
	"time"

	"github.com/noah-isme/classroom-portal/internal/models"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// DialogState is the single finite state of the booking dialog.
type DialogState string

// Dialog states.
const (
	DialogClosed       DialogState = "closed"
	DialogAccepting    DialogState = "accepting"
	DialogRejecting    DialogState = "rejecting"
	DialogCancelling   DialogState = "cancelling"
	DialogRescheduling DialogState = "rescheduling"
)

// Dialog errors.
var (
	ErrDialogBusy   = appErrors.New("DIALOG_BUSY", http.StatusConflict, "another dialog is already open")
	ErrDialogClosed = appErrors.New("DIALOG_CLOSED", http.StatusConflict, "no dialog is open")
)

// DialogStateFor maps a workflow action to the dialog that collects its input.
func DialogStateFor(action models.SessionAction) (DialogState, bool) {
	switch action {
	case models.SessionActionAccept:
		return DialogAccepting, true
	case models.SessionActionReject:
		return DialogRejecting, true
	case models.SessionActionCancel:
		return DialogCancelling, true
	case models.SessionActionReschedule:
		return DialogRescheduling, true
	default:
		return DialogClosed, false
	}
}

// DialogForm holds the fields entered into the open dialog.
type DialogForm struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Date        string    `json:"date,omitempty"`
	StartTime   time.Time `json:"startTime,omitempty"`
}

// DialogSnapshot is the serializable view of the dialog.
type DialogSnapshot struct {
	State     DialogState `json:"state"`
	SessionID string      `json:"sessionId,omitempty"`
	Form      *DialogForm `json:"form,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type dialogBackend interface {
	Accept(ctx context.Context, principal *models.Principal, sessionID string, input AcceptSessionInput) (*models.Session, error)
	Reject(ctx context.Context, principal *models.Principal, sessionID string, input ReasonInput) (*models.Session, error)
	Cancel(ctx context.Context, principal *models.Principal, sessionID string, input ReasonInput) (*models.Session, error)
	Reschedule(ctx context.Context, principal *models.Principal, sessionID string, input RescheduleInput) (*models.Session, error)
}

// BookingDialog holds the open dialog and its payload as one value.
// A failed submit keeps it open with its payload; a successful one closes it.
type BookingDialog struct {
	backend   dialogBackend
	principal *models.Principal
	state     DialogState
	sessionID string
	form      DialogForm
	lastErr   error
}

// NewBookingDialog returns a closed dialog acting for principal.
func NewBookingDialog(backend dialogBackend, principal *models.Principal) *BookingDialog {
	return &BookingDialog{backend: backend, principal: principal, state: DialogClosed}
}

// Open enters state for the session. Opening over another open dialog fails.
func (d *BookingDialog) Open(state DialogState, sessionID string) error {
	if d.state != DialogClosed {
		return ErrDialogBusy
	}
	if state == DialogClosed {
		return nil
	}
	d.state = state
	d.sessionID = sessionID
	d.form = DialogForm{}
	d.lastErr = nil
	return nil
}

// Edit replaces the entered form fields.
func (d *BookingDialog) Edit(form DialogForm) error {
	if d.state == DialogClosed {
		return ErrDialogClosed
	}
	d.form = form
	return nil
}

// SelectSlot records the slot picked in the rescheduling dialog.
func (d *BookingDialog) SelectSlot(slot models.AvailableSlot, loc *time.Location) error {
	if d.state != DialogRescheduling {
		return ErrDialogClosed
	}
	if loc == nil {
		loc = time.UTC
	}
	d.form.Date = slot.StartTime.In(loc).Format(models.DateLayout)
	d.form.StartTime = slot.StartTime
	return nil
}

// Submit runs the action of the open dialog.
func (d *BookingDialog) Submit(ctx context.Context) (*models.Session, error) {
	var (
		session *models.Session
		err     error
	)
	switch d.state {
	case DialogAccepting:
		session, err = d.backend.Accept(ctx, d.principal, d.sessionID, AcceptSessionInput{Title: d.form.Title, Description: d.form.Description})
	case DialogRejecting:
		session, err = d.backend.Reject(ctx, d.principal, d.sessionID, ReasonInput{Reason: d.form.Reason})
	case DialogCancelling:
		session, err = d.backend.Cancel(ctx, d.principal, d.sessionID, ReasonInput{Reason: d.form.Reason})
	case DialogRescheduling:
		session, err = d.backend.Reschedule(ctx, d.principal, d.sessionID, RescheduleInput{Date: d.form.Date, StartTime: d.form.StartTime})
	default:
		return nil, ErrDialogClosed
	}
	if err != nil {
		d.lastErr = err
		return nil, err
	}
	d.Close()
	return session, nil
}

// Close discards the dialog payload.
func (d *BookingDialog) Close() {
	d.state = DialogClosed
	d.sessionID = ""
	d.form = DialogForm{}
	d.lastErr = nil
}

// State returns the current state.
func (d *BookingDialog) State() DialogState { return d.state }

// Err returns the error of the last failed submit.
func (d *BookingDialog) Err() error { return d.lastErr }

// Snapshot serializes the dialog for the browser.
func (d *BookingDialog) Snapshot() DialogSnapshot {
	snap := DialogSnapshot{State: d.state, SessionID: d.sessionID}
	if d.state != DialogClosed {
		form := d.form
		snap.Form = &form
	}
	if d.lastErr != nil {
		if appErr := appErrors.FromError(d.lastErr); appErr != nil {
			snap.Error = appErr.Message
		}
	}
	return snap
}
