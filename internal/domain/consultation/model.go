package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/pkg/calendar"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	maxNameLength    = 200
	maxMessageLength = 5000
)

// Appointment is one consultation request for a lawyer's slot.
type Appointment struct {
	ID                 uuid.UUID          `json:"id"`
	LawyerID           uuid.UUID          `json:"lawyer_id"`
	Date               calendar.Date      `json:"appointment_date"`
	Time               calendar.ClockTime `json:"appointment_time"`
	Status             string             `json:"status"`
	ClientName         string             `json:"client_name"`
	ClientEmail        string             `json:"client_email"`
	ClientPhone        string             `json:"client_phone,omitempty"`
	PracticeArea       string             `json:"practice_area,omitempty"`
	Message            string             `json:"message,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsActive reports whether a consumes capacity.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

var transitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether an appointment in status from may move to to.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// SubmitConsultation is a client's booking request.
type SubmitConsultation struct {
	LawyerID     uuid.UUID `json:"lawyer_id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	ClientName   string    `json:"client_name"`
	ClientEmail  string    `json:"client_email"`
	ClientPhone  string    `json:"client_phone"`
	PracticeArea string    `json:"practice_area"`
	Message      string    `json:"message"`
}

// ListFilter narrows ListByLawyer.
type ListFilter struct {
	Date   *calendar.Date
	Status string
}

// NoticeData is the template data of a client notice about a.
func NoticeData(a *Appointment, lawyerName, reason string) map[string]string {
	data := map[string]string{
		"client_name": a.ClientName,
		"lawyer_name": lawyerName,
		"date":        a.Date.String(),
		"time":        a.Time.Kitchen(),
	}
	if reason != "" {
		data["reason"] = reason
	}
	return data
}
