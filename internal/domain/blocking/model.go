package blocking

import (
	"github.com/google/uuid"

	"github.com/lawfirm/booking/pkg/calendar"
)

// MaxRangeDays is the widest span a single range block may cover.
const MaxRangeDays = 366

type EventType string

const (
	EventDateBlocked          EventType = "DateBlocked"
	EventAppointmentCancelled EventType = "AppointmentCancelled"
	EventDateUnblocked        EventType = "DateUnblocked"
)

// Event records one state change made by a command, in the order it
// happened.
type Event struct {
	Type          EventType     `json:"type"`
	Date          calendar.Date `json:"date"`
	RuleID        *uuid.UUID    `json:"rule_id,omitempty"`
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

type BlockDateCommand struct {
	LawyerID uuid.UUID
	Date     calendar.Date
	Reason   string
}

// BlockRangeCommand blocks every date in [Start, End].
type BlockRangeCommand struct {
	LawyerID uuid.UUID
	Start    calendar.Date
	End      calendar.Date
	Reason   string
}

type UnblockCommand struct {
	LawyerID uuid.UUID
	Date     calendar.Date
}

type BulkUnblockCommand struct {
	LawyerID uuid.UUID
	Dates    []calendar.Date
}

// Result is what every blocking command returns.
type Result struct {
	BlockedDates          []calendar.Date `json:"blocked_dates"`
	UnblockedDates        []calendar.Date `json:"unblocked_dates"`
	SkippedDates          []calendar.Date `json:"skipped_dates"`
	CancelledAppointments int             `json:"cancelled_appointments"`
	NotificationsQueued   int             `json:"notifications_queued"`
	Events                []Event         `json:"events"`
}

func newResult() *Result {
	return &Result{
		BlockedDates:   []calendar.Date{},
		UnblockedDates: []calendar.Date{},
		SkippedDates:   []calendar.Date{},
		Events:         []Event{},
	}
}

func (r *Result) emit(e Event) {
	r.Events = append(r.Events, e)
}
