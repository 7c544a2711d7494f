package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/pkg/calendar"
)

type LawyerRepository interface {
	Create(ctx context.Context, l *Lawyer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Lawyer, error)
	// LockForUpdate reads the lawyer row and holds a row lock until the
	// surrounding transaction ends.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Lawyer, error)
}

type RuleRepository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	ListActiveByLawyer(ctx context.Context, lawyerID uuid.UUID) ([]*Rule, error)
	ListBlocked(ctx context.Context, lawyerID uuid.UUID, from, to calendar.Date) ([]*Rule, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AppointmentCounter answers the capacity questions the resolver asks of the
// appointment store. Only appointments whose status is in statuses count.
type AppointmentCounter interface {
	CountForDate(ctx context.Context, lawyerID uuid.UUID, date calendar.Date, statuses []string) (int, error)
	CountForSlot(ctx context.Context, lawyerID uuid.UUID, date calendar.Date, at calendar.ClockTime, statuses []string) (int, error)
	CountByDate(ctx context.Context, lawyerID uuid.UUID, from, to calendar.Date, statuses []string) (map[calendar.Date]int, error)
	CountByTime(ctx context.Context, lawyerID uuid.UUID, date calendar.Date, statuses []string) (map[calendar.ClockTime]int, error)
}
