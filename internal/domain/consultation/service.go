package consultation

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/internal/platform/notification"
	"github.com/lawfirm/booking/pkg/calendar"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier queues a client notice. Implementations write through the
// transaction carried by ctx.
type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string) error
}

type Service struct {
	tx       TxRunner
	lawyers  scheduling.LawyerRepository
	rules    scheduling.RuleRepository
	appts    Repository
	notifier Notifier
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(tx TxRunner, lawyers scheduling.LawyerRepository, rules scheduling.RuleRepository,
	appts Repository, notifier Notifier, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx: tx, lawyers: lawyers, rules: rules, appts: appts, notifier: notifier,
		logger: logger, loc: loc, now: time.Now,
	}
}

// WithClock replaces the wall clock used to compute "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) validate(cmd *SubmitConsultation) (calendar.Date, calendar.ClockTime, error) {
	v := &scheduling.ValidationError{}
	cmd.ClientName = strings.TrimSpace(cmd.ClientName)
	cmd.ClientEmail = strings.TrimSpace(cmd.ClientEmail)
	cmd.ClientPhone = strings.TrimSpace(cmd.ClientPhone)
	cmd.PracticeArea = strings.TrimSpace(cmd.PracticeArea)
	cmd.Message = strings.TrimSpace(cmd.Message)

	if cmd.LawyerID == uuid.Nil {
		v.Add("lawyer_id", "is required")
	}
	if cmd.ClientName == "" {
		v.Add("client_name", "is required")
	} else if len(cmd.ClientName) > maxNameLength {
		v.Add("client_name", "is too long")
	}
	if addr, err := mail.ParseAddress(cmd.ClientEmail); err != nil {
		v.Add("client_email", "must be a valid address")
	} else {
		cmd.ClientEmail = addr.Address
	}
	if len(cmd.Message) > maxMessageLength {
		v.Add("message", "is too long")
	}

	d, err := calendar.ParseDate(cmd.Date)
	if err != nil {
		v.Add("date", "must be a valid YYYY-MM-DD date")
	} else if d.Before(calendar.Today(s.now(), s.loc)) {
		v.Add("date", "must not be in the past")
	}
	at, err := calendar.ParseClock(cmd.Time)
	if err != nil {
		v.Add("time", "must be HH:MM")
	}
	return d, at, v.Err()
}

// ReserveSlot books a pending consultation. Capacity is checked again under
// a row lock on the lawyer, so concurrent bookings for one lawyer serialise
// and the first to commit wins.
func (s *Service) ReserveSlot(ctx context.Context, cmd SubmitConsultation) (*Appointment, error) {
	d, at, err := s.validate(&cmd)
	if err != nil {
		return nil, err
	}

	var appt *Appointment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lawyer, err := s.lawyers.LockForUpdate(ctx, cmd.LawyerID)
		if err != nil {
			return scheduling.Internal("lock lawyer", err)
		}
		if !lawyer.IsActive {
			return fmt.Errorf("%w: lawyer is not active", scheduling.ErrNotFound)
		}

		if horizon := scheduling.BookingHorizon(calendar.Today(s.now(), s.loc), lawyer.MaxBookingWeeks); d.After(horizon) {
			return fmt.Errorf("%w: date is beyond the booking horizon", scheduling.ErrInvalidArgument)
		}

		rules, err := s.rules.ListActiveByLawyer(ctx, cmd.LawyerID)
		if err != nil {
			return scheduling.Internal("list rules", err)
		}
		booked, err := s.appts.CountForDate(ctx, cmd.LawyerID, d, scheduling.CapacityStatuses)
		if err != nil {
			return scheduling.Internal("count appointments", err)
		}

		rule := scheduling.NewRuleSet(rules).Effective(d, booked)
		switch {
		case rule == nil:
			return fmt.Errorf("%w: no availability for this date", scheduling.ErrInvalidArgument)
		case rule.Kind == scheduling.KindBlocked:
			return fmt.Errorf("%w: date is blocked", scheduling.ErrInvalidArgument)
		case !scheduling.OnGrid(rule, at):
			return fmt.Errorf("%w: time is not a slot start for this date", scheduling.ErrInvalidArgument)
		case booked >= rule.MaxAppointments:
			return fmt.Errorf("%w: no appointments left on %s", scheduling.ErrCapacityExceeded, d)
		}

		taken, err := s.appts.CountForSlot(ctx, cmd.LawyerID, d, at, scheduling.CapacityStatuses)
		if err != nil {
			return scheduling.Internal("count slot", err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: slot %s on %s is taken", scheduling.ErrCapacityExceeded, at, d)
		}

		appt = &Appointment{
			LawyerID:     cmd.LawyerID,
			Date:         d,
			Time:         at,
			Status:       StatusPending,
			ClientName:   cmd.ClientName,
			ClientEmail:  cmd.ClientEmail,
			ClientPhone:  cmd.ClientPhone,
			PracticeArea: cmd.PracticeArea,
			Message:      cmd.Message,
		}
		if err := s.appts.Create(ctx, appt); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: slot %s on %s is taken", scheduling.ErrCapacityExceeded, at, d)
			}
			return scheduling.Internal("create appointment", err)
		}

		err = s.notifier.Notify(ctx, notification.TemplateConsultationReceived, appt.ClientEmail,
			NoticeData(appt, lawyer.FullName, ""))
		return scheduling.Internal("queue notification", err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("lawyer_id", appt.LawyerID.String()).
		Str("date", appt.Date.String()).
		Str("time", appt.Time.String()).
		Msg("consultation reserved")
	return appt, nil
}

// UpdateStatus moves an appointment along the status table. Confirming or
// cancelling queues the matching client notice in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, sess auth.Session, id uuid.UUID, status, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appts.GetByID(ctx, id)
		if err != nil {
			return scheduling.Internal("get appointment", err)
		}
		if !sess.CanManageLawyer(a.LawyerID) {
			return fmt.Errorf("%w: cannot manage this lawyer's consultations", scheduling.ErrForbidden)
		}
		if !CanTransition(a.Status, status) {
			return fmt.Errorf("%w: cannot move a %s consultation to %s", scheduling.ErrInvalidArgument, a.Status, status)
		}
		if err := s.appts.UpdateStatus(ctx, id, status, reason); err != nil {
			return scheduling.Internal("update appointment", err)
		}
		a.Status = status
		if reason != "" {
			a.CancellationReason = reason
		}
		appt = a

		var templateID string
		switch status {
		case StatusConfirmed:
			templateID = notification.TemplateConsultationConfirmed
		case StatusCancelled:
			templateID = notification.TemplateConsultationCancelled
			if reason == "" {
				reason = "cancelled by the firm"
			}
		default:
			return nil
		}
		lawyer, err := s.lawyers.GetByID(ctx, a.LawyerID)
		if err != nil {
			return scheduling.Internal("get lawyer", err)
		}
		err = s.notifier.Notify(ctx, templateID, a.ClientEmail, NoticeData(a, lawyer.FullName, reason))
		return scheduling.Internal("queue notification", err)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", id.String()).Str("status", status).Msg("consultation status changed")
	return appt, nil
}

func (s *Service) ListByLawyer(ctx context.Context, sess auth.Session, lawyerID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if !sess.CanManageLawyer(lawyerID) {
		return nil, 0, fmt.Errorf("%w: cannot view this lawyer's consultations", scheduling.ErrForbidden)
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", scheduling.ErrInvalidArgument, f.Status)
	}
	items, total, err := s.appts.ListByLawyer(ctx, lawyerID, f, limit, offset)
	if err != nil {
		return nil, 0, scheduling.Internal("list appointments", err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, total, nil
}
