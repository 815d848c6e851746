package models

import "time"

// SlotFlow selects which booking rules apply to a slot query.
type SlotFlow string

// Slot query flows.
const (
	SlotFlowStudent SlotFlow = "student"
	SlotFlowTeacher SlotFlow = "teacher"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// SlotTimeLayout formats slot boundaries for display, e.g. "9:00 AM".
const SlotTimeLayout = "3:04 PM"

// NoSlotsMessage is shown when a date has no remaining capacity.
const NoSlotsMessage = "No available time slots for the selected date"

// AvailableSlot is a read-only candidate booking window.
type AvailableSlot struct {
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	FormattedStart string    `json:"formattedStart"`
	FormattedEnd   string    `json:"formattedEnd"`
}

// Overlaps reports whether two half-open windows intersect.
func (s AvailableSlot) Overlaps(other AvailableSlot) bool {
	return s.StartTime.Before(other.EndTime) && other.StartTime.Before(s.EndTime)
}

// SlotQuery identifies one availability lookup.
type SlotQuery struct {
	ProgramID       string   `json:"programId" validate:"required"`
	SubjectID       string   `json:"subjectId" validate:"required"`
	Date            string   `json:"date" validate:"required"`
	DurationMinutes int      `json:"duration" validate:"gte=0,lte=480"`
	Flow            SlotFlow `json:"flow" validate:"omitempty,oneof=student teacher"`
}

// SlotResult is the presented outcome of a slot lookup. An empty result is not an error.
type SlotResult struct {
	Date      string          `json:"date"`
	Slots     []AvailableSlot `json:"slots"`
	Empty     bool            `json:"empty"`
	CanSubmit bool            `json:"canSubmit"`
	Message   string          `json:"message,omitempty"`
}

// Find returns the slot starting at start, if present.
func (r SlotResult) Find(start time.Time) (AvailableSlot, bool) {
	for _, slot := range r.Slots {
		if slot.StartTime.Equal(start) {
			return slot, true
		}
	}
	return AvailableSlot{}, false
}
