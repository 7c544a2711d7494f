package scheduling

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/pkg/calendar"
)

// Settings carries the firm-wide resolver defaults.
type Settings struct {
	Location     *time.Location
	DefaultWeeks int
	MaxWeeks     int
}

type Service struct {
	lawyers  LawyerRepository
	rules    RuleRepository
	counter  AppointmentCounter
	settings Settings
	now      func() time.Time
}

func NewService(lawyers LawyerRepository, rules RuleRepository, counter AppointmentCounter, settings Settings) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.DefaultWeeks <= 0 {
		settings.DefaultWeeks = DefaultBookingWeeks
	}
	if settings.MaxWeeks <= 0 {
		settings.MaxWeeks = DefaultMaxWeeks
	}
	return &Service{lawyers: lawyers, rules: rules, counter: counter, settings: settings, now: time.Now}
}

// WithClock replaces the wall clock used to compute "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today is the current date in the firm's timezone.
func (s *Service) Today() calendar.Date {
	return calendar.Today(s.now(), s.settings.Location)
}

// -- Lawyers --

func (s *Service) CreateLawyer(ctx context.Context, l *Lawyer) error {
	v := &ValidationError{}
	l.FullName = strings.TrimSpace(l.FullName)
	l.Email = strings.TrimSpace(l.Email)
	if l.FullName == "" {
		v.Add("full_name", "is required")
	}
	if _, err := mail.ParseAddress(l.Email); err != nil {
		v.Add("email", "must be a valid address")
	}
	if l.MaxBookingWeeks == 0 {
		l.MaxBookingWeeks = s.settings.MaxWeeks
	}
	if l.MaxBookingWeeks < 1 || l.MaxBookingWeeks > 260 {
		v.Add("max_booking_weeks", "must be between 1 and 260")
	}
	if err := v.Err(); err != nil {
		return err
	}
	l.IsActive = true
	return Internal("create lawyer", s.lawyers.Create(ctx, l))
}

func (s *Service) GetLawyer(ctx context.Context, id uuid.UUID) (*Lawyer, error) {
	l, err := s.lawyers.GetByID(ctx, id)
	if err != nil {
		return nil, Internal("get lawyer", err)
	}
	return l, nil
}

func (s *Service) activeLawyer(ctx context.Context, id uuid.UUID) (*Lawyer, error) {
	l, err := s.GetLawyer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, fmt.Errorf("%w: lawyer is not active", ErrNotFound)
	}
	return l, nil
}

// -- Resolution --

func (s *Service) maxWeeks(l *Lawyer) int {
	if l.MaxBookingWeeks > 0 {
		return l.MaxBookingWeeks
	}
	return s.settings.MaxWeeks
}

// LoadRuleSet reads the active rules of a lawyer.
func (s *Service) LoadRuleSet(ctx context.Context, lawyerID uuid.UUID) (*RuleSet, error) {
	rules, err := s.rules.ListActiveByLawyer(ctx, lawyerID)
	if err != nil {
		return nil, Internal("list rules", err)
	}
	return NewRuleSet(rules), nil
}

// ResolveAvailability computes the status of every date in the requested
// window for an active lawyer with at least one active rule.
func (s *Service) ResolveAvailability(ctx context.Context, lawyerID uuid.UUID, req WindowRequest) (*AvailabilityResult, error) {
	lawyer, err := s.activeLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	rs, err := s.LoadRuleSet(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	if rs.Empty() {
		return nil, fmt.Errorf("%w: lawyer has no active schedule", ErrNotFound)
	}

	w := ResolveWindow(s.Today(), req, s.settings.DefaultWeeks, s.maxWeeks(lawyer))

	counts, err := s.counter.CountByDate(ctx, lawyerID, w.Start, w.End, CapacityStatuses)
	if err != nil {
		return nil, Internal("count appointments", err)
	}
	return BuildAvailability(rs, w, counts), nil
}

// ResolveTimeSlots lays out the bookable slots of one date. date must be
// YYYY-MM-DD.
func (s *Service) ResolveTimeSlots(ctx context.Context, lawyerID uuid.UUID, date string) (*SlotList, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		v := &ValidationError{}
		v.Add("date", "must be a valid YYYY-MM-DD date")
		return nil, v
	}
	if _, err := s.activeLawyer(ctx, lawyerID); err != nil {
		return nil, err
	}
	return s.slotsOn(ctx, lawyerID, d)
}

func (s *Service) slotsOn(ctx context.Context, lawyerID uuid.UUID, d calendar.Date) (*SlotList, error) {
	rs, err := s.LoadRuleSet(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	booked, err := s.counter.CountForDate(ctx, lawyerID, d, CapacityStatuses)
	if err != nil {
		return nil, Internal("count appointments", err)
	}
	r := rs.Effective(d, booked)
	if r == nil || r.Kind == KindBlocked {
		return BuildSlots(d, r, booked, nil), nil
	}
	byTime, err := s.counter.CountByTime(ctx, lawyerID, d, CapacityStatuses)
	if err != nil {
		return nil, Internal("count appointments by time", err)
	}
	return BuildSlots(d, r, booked, byTime), nil
}

// CheckAvailability reports whether the slot starting at clock on date is
// currently free. The answer is advisory; the booking transaction checks
// again.
func (s *Service) CheckAvailability(ctx context.Context, lawyerID uuid.UUID, date, clock string) (*SlotCheck, error) {
	v := &ValidationError{}
	d, err := calendar.ParseDate(date)
	if err != nil {
		v.Add("date", "must be a valid YYYY-MM-DD date")
	}
	at, err := calendar.ParseClock(clock)
	if err != nil {
		v.Add("time", "must be HH:MM")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	lawyer, err := s.activeLawyer(ctx, lawyerID)
	if err != nil {
		return nil, err
	}

	list, err := s.slotsOn(ctx, lawyerID, d)
	if err != nil {
		return nil, err
	}
	check := &SlotCheck{Date: d, Time: at.String()}
	for _, slot := range list.TimeSlots {
		if slot.Time24h != check.Time {
			continue
		}
		check.Exists = true
		check.Available = slot.Available
		break
	}
	today := s.Today()
	outside := d.Before(today) || d.After(BookingHorizon(today, s.maxWeeks(lawyer)))
	if outside {
		check.Available = false
	}
	switch {
	case outside:
		check.Message = "date is outside the booking window"
	case !check.Exists && list.Message != "":
		check.Message = list.Message
	case !check.Exists:
		check.Message = "time is not a slot start for this date"
	case !check.Available:
		check.Message = "slot is not available"
	}
	return check, nil
}

// -- Rule management --

// CreateRule stores a weekly or one-time rule. Blocks go through the
// blocking workflow instead.
func (s *Service) CreateRule(ctx context.Context, sess auth.Session, r *Rule) error {
	if !sess.CanManageLawyer(r.LawyerID) {
		return fmt.Errorf("%w: cannot manage this lawyer's schedule", ErrForbidden)
	}
	if _, err := s.GetLawyer(ctx, r.LawyerID); err != nil {
		return err
	}
	if r.Kind == KindWeekly && r.Weekdays.IsEmpty() {
		r.Weekdays = calendar.AllWeekdays
	}
	if r.Kind == KindOneTime {
		r.Weekdays = 0
	}
	r.IsActive = true
	r.Reason = ""
	r.CreatedBy = sess.ActorID()
	if err := r.Validate(); err != nil {
		return err
	}
	return Internal("create rule", s.rules.Create(ctx, r))
}

func (s *Service) ListRules(ctx context.Context, sess auth.Session, lawyerID uuid.UUID) ([]*Rule, error) {
	if !sess.CanManageLawyer(lawyerID) {
		return nil, fmt.Errorf("%w: cannot view this lawyer's schedule", ErrForbidden)
	}
	rules, err := s.rules.ListActiveByLawyer(ctx, lawyerID)
	if err != nil {
		return nil, Internal("list rules", err)
	}
	if rules == nil {
		rules = []*Rule{}
	}
	return rules, nil
}

// DeactivateRule soft-disables a weekly or one-time rule of lawyerID.
func (s *Service) DeactivateRule(ctx context.Context, sess auth.Session, lawyerID, ruleID uuid.UUID) error {
	if !sess.CanManageLawyer(lawyerID) {
		return fmt.Errorf("%w: cannot manage this lawyer's schedule", ErrForbidden)
	}
	r, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return Internal("get rule", err)
	}
	if r.LawyerID != lawyerID || !r.IsActive {
		return fmt.Errorf("%w: schedule rule", ErrNotFound)
	}
	if r.Kind == KindBlocked {
		return fmt.Errorf("%w: blocked dates are removed by unblocking", ErrInvalidArgument)
	}
	return Internal("deactivate rule", s.rules.Deactivate(ctx, ruleID))
}
