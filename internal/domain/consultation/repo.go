package consultation

import (
	"context"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/pkg/calendar"
)

type Repository interface {
	scheduling.AppointmentCounter

	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) error
	ListByLawyer(ctx context.Context, lawyerID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListActiveOn returns the pending and confirmed appointments of lawyerID
	// on any of dates, ordered by date and time.
	ListActiveOn(ctx context.Context, lawyerID uuid.UUID, dates []calendar.Date) ([]*Appointment, error)
	// CancelMany cancels the given appointments that are still active in one
	// statement and returns how many changed.
	CancelMany(ctx context.Context, ids []uuid.UUID, reason string) (int64, error)
}
