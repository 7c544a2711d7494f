package blocking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lawfirm/booking/internal/domain/consultation"
	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/internal/platform/notification"
	"github.com/lawfirm/booking/pkg/calendar"
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Appointments is the part of the appointment store a block touches.
type Appointments interface {
	ListActiveOn(ctx context.Context, lawyerID uuid.UUID, dates []calendar.Date) ([]*consultation.Appointment, error)
	CancelMany(ctx context.Context, ids []uuid.UUID, reason string) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string) error
}

// Service runs the blocking commands. Each command is one transaction: the
// rule changes, the cascaded cancellations and the queued notices commit or
// roll back together.
type Service struct {
	tx       TxRunner
	lawyers  scheduling.LawyerRepository
	rules    scheduling.RuleRepository
	appts    Appointments
	notifier Notifier
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(tx TxRunner, lawyers scheduling.LawyerRepository, rules scheduling.RuleRepository,
	appts Appointments, notifier Notifier, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx: tx, lawyers: lawyers, rules: rules, appts: appts, notifier: notifier,
		logger: logger.With().Str("component", "blocking").Logger(),
		loc:    loc, now: time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() calendar.Date {
	return calendar.Today(s.now(), s.loc)
}

func (s *Service) authorize(sess auth.Session, lawyerID uuid.UUID) error {
	if !sess.CanManageLawyer(lawyerID) {
		return fmt.Errorf("%w: cannot manage this lawyer's calendar", scheduling.ErrForbidden)
	}
	return nil
}

func validReason(v *scheduling.ValidationError, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		v.Add("reason", "is required")
	} else if len(reason) > scheduling.MaxReasonLength {
		v.Add("reason", "is too long")
	}
	return reason
}

// BlockDate blocks one date and cancels the appointments already on it.
func (s *Service) BlockDate(ctx context.Context, sess auth.Session, cmd BlockDateCommand) (*Result, error) {
	if err := s.authorize(sess, cmd.LawyerID); err != nil {
		return nil, err
	}
	v := &scheduling.ValidationError{}
	if cmd.Date.IsZero() {
		v.Add("date", "is required")
	} else if cmd.Date.Before(s.today()) {
		v.Add("date", "must not be in the past")
	}
	reason := validReason(v, cmd.Reason)
	if err := v.Err(); err != nil {
		return nil, err
	}

	res, err := s.block(ctx, sess, cmd.LawyerID, []calendar.Date{cmd.Date}, reason, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("lawyer_id", cmd.LawyerID.String()).
		Str("date", cmd.Date.String()).
		Int("cancelled", res.CancelledAppointments).
		Int("notifications", res.NotificationsQueued).
		Msg("date blocked")
	return res, nil
}

// BlockRange blocks every date in the range. Dates that are already blocked
// are reported as skipped.
func (s *Service) BlockRange(ctx context.Context, sess auth.Session, cmd BlockRangeCommand) (*Result, error) {
	if err := s.authorize(sess, cmd.LawyerID); err != nil {
		return nil, err
	}
	v := &scheduling.ValidationError{}
	switch {
	case cmd.Start.IsZero():
		v.Add("start_date", "is required")
	case cmd.Start.Before(s.today()):
		v.Add("start_date", "must not be in the past")
	}
	switch {
	case cmd.End.IsZero():
		v.Add("end_date", "is required")
	case !cmd.Start.IsZero() && cmd.End.Before(cmd.Start):
		v.Add("end_date", "must not be before start_date")
	case !cmd.Start.IsZero() && cmd.Start.DaysUntil(cmd.End) > MaxRangeDays:
		v.Add("end_date", fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}
	reason := validReason(v, cmd.Reason)
	if err := v.Err(); err != nil {
		return nil, err
	}

	res, err := s.block(ctx, sess, cmd.LawyerID, calendar.Range(cmd.Start, cmd.End), reason, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("lawyer_id", cmd.LawyerID.String()).
		Str("start", cmd.Start.String()).
		Str("end", cmd.End.String()).
		Int("blocked", len(res.BlockedDates)).
		Int("skipped", len(res.SkippedDates)).
		Int("cancelled", res.CancelledAppointments).
		Int("notifications", res.NotificationsQueued).
		Msg("date range blocked")
	return res, nil
}

// block inserts one blocked rule per date not yet blocked, cancels the
// active appointments on those dates in one batch and queues a notice per
// cancellation. With strict set an already blocked date fails the command.
func (s *Service) block(ctx context.Context, sess auth.Session, lawyerID uuid.UUID, dates []calendar.Date, reason string, strict bool) (*Result, error) {
	res := newResult()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lawyer, err := s.lawyers.LockForUpdate(ctx, lawyerID)
		if err != nil {
			return scheduling.Internal("lock lawyer", err)
		}

		existing, err := s.rules.ListBlocked(ctx, lawyerID, dates[0], dates[len(dates)-1])
		if err != nil {
			return scheduling.Internal("list blocks", err)
		}
		var fresh []calendar.Date
		for _, d := range dates {
			if coveredBy(existing, d) != nil {
				if strict {
					return fmt.Errorf("%w: %s", scheduling.ErrAlreadyBlocked, d)
				}
				res.SkippedDates = append(res.SkippedDates, d)
				continue
			}
			fresh = append(fresh, d)
		}
		if len(fresh) == 0 {
			return nil
		}

		for _, d := range fresh {
			rule := scheduling.NewBlockedRule(lawyerID, d, reason, sess.ActorID())
			if err := s.rules.Create(ctx, rule); err != nil {
				return scheduling.Internal("create block", err)
			}
			id := rule.ID
			res.BlockedDates = append(res.BlockedDates, d)
			res.emit(Event{Type: EventDateBlocked, Date: d, RuleID: &id, Reason: reason})
		}

		affected, err := s.appts.ListActiveOn(ctx, lawyerID, fresh)
		if err != nil {
			return scheduling.Internal("list appointments", err)
		}
		if len(affected) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, len(affected))
		for i, a := range affected {
			ids[i] = a.ID
		}
		n, err := s.appts.CancelMany(ctx, ids, reason)
		if err != nil {
			return scheduling.Internal("cancel appointments", err)
		}
		res.CancelledAppointments = int(n)

		for _, a := range affected {
			a.Status = consultation.StatusCancelled
			a.CancellationReason = reason
			err := s.notifier.Notify(ctx, notification.TemplateConsultationCancelled, a.ClientEmail,
				consultation.NoticeData(a, lawyer.FullName, reason))
			if err != nil {
				return scheduling.Internal("queue notification", err)
			}
			id := a.ID
			res.NotificationsQueued++
			res.emit(Event{Type: EventAppointmentCancelled, Date: a.Date, AppointmentID: &id, Reason: reason})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unblock removes the block on one date. A range block is split around the
// date so the rest of the range stays blocked.
func (s *Service) Unblock(ctx context.Context, sess auth.Session, cmd UnblockCommand) (*Result, error) {
	if err := s.authorize(sess, cmd.LawyerID); err != nil {
		return nil, err
	}
	if cmd.Date.IsZero() {
		v := &scheduling.ValidationError{}
		v.Add("date", "is required")
		return nil, v
	}

	res := newResult()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lawyers.LockForUpdate(ctx, cmd.LawyerID); err != nil {
			return scheduling.Internal("lock lawyer", err)
		}
		ok, err := s.unblockOne(ctx, sess, cmd.LawyerID, cmd.Date, res)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s is not blocked", scheduling.ErrNotFound, cmd.Date)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("lawyer_id", cmd.LawyerID.String()).Str("date", cmd.Date.String()).Msg("date unblocked")
	return res, nil
}

// BulkUnblock unblocks every listed date in one transaction. Dates without a
// block are reported as skipped.
func (s *Service) BulkUnblock(ctx context.Context, sess auth.Session, cmd BulkUnblockCommand) (*Result, error) {
	if err := s.authorize(sess, cmd.LawyerID); err != nil {
		return nil, err
	}
	if len(cmd.Dates) == 0 {
		v := &scheduling.ValidationError{}
		v.Add("dates", "must list at least one date")
		return nil, v
	}
	dates := uniqueSorted(cmd.Dates)

	res := newResult()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lawyers.LockForUpdate(ctx, cmd.LawyerID); err != nil {
			return scheduling.Internal("lock lawyer", err)
		}
		for _, d := range dates {
			ok, err := s.unblockOne(ctx, sess, cmd.LawyerID, d, res)
			if err != nil {
				return err
			}
			if !ok {
				res.SkippedDates = append(res.SkippedDates, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("lawyer_id", cmd.LawyerID.String()).
		Int("unblocked", len(res.UnblockedDates)).
		Int("skipped", len(res.SkippedDates)).
		Msg("dates unblocked")
	return res, nil
}

func (s *Service) unblockOne(ctx context.Context, sess auth.Session, lawyerID uuid.UUID, d calendar.Date, res *Result) (bool, error) {
	blocks, err := s.rules.ListBlocked(ctx, lawyerID, d, d)
	if err != nil {
		return false, scheduling.Internal("list blocks", err)
	}
	found := false
	for _, b := range blocks {
		if !b.Covers(d) {
			continue
		}
		found = true
		if err := s.rules.Delete(ctx, b.ID); err != nil {
			return false, scheduling.Internal("delete block", err)
		}
		if b.IsRange() {
			if err := s.splitRange(ctx, sess, b, d); err != nil {
				return false, err
			}
		}
		id := b.ID
		res.emit(Event{Type: EventDateUnblocked, Date: d, RuleID: &id, Reason: b.Reason})
	}
	if found {
		res.UnblockedDates = append(res.UnblockedDates, d)
	}
	return found, nil
}

// splitRange re-creates the parts of range rule b on either side of d.
func (s *Service) splitRange(ctx context.Context, sess auth.Session, b *scheduling.Rule, d calendar.Date) error {
	parts := [][2]calendar.Date{}
	if b.RangeStart.Before(d) {
		parts = append(parts, [2]calendar.Date{*b.RangeStart, d.AddDays(-1)})
	}
	if d.Before(*b.RangeEnd) {
		parts = append(parts, [2]calendar.Date{d.AddDays(1), *b.RangeEnd})
	}
	for _, p := range parts {
		start, end := p[0], p[1]
		rule := &scheduling.Rule{
			LawyerID:   b.LawyerID,
			Kind:       scheduling.KindBlocked,
			RangeStart: &start,
			RangeEnd:   &end,
			IsActive:   true,
			Reason:     b.Reason,
			CreatedBy:  b.CreatedBy,
		}
		if rule.CreatedBy == nil {
			rule.CreatedBy = sess.ActorID()
		}
		if err := s.rules.Create(ctx, rule); err != nil {
			return scheduling.Internal("split block", err)
		}
	}
	return nil
}

// ListBlocked returns the blocks intersecting [from, to]. A missing from
// defaults to today and a missing to to one year after from.
func (s *Service) ListBlocked(ctx context.Context, sess auth.Session, lawyerID uuid.UUID, from, to *calendar.Date) ([]*scheduling.Rule, error) {
	if err := s.authorize(sess, lawyerID); err != nil {
		return nil, err
	}
	start := s.today()
	if from != nil {
		start = *from
	}
	end := start.AddDays(365)
	if to != nil {
		end = *to
	}
	if end.Before(start) {
		v := &scheduling.ValidationError{}
		v.Add("to", "must not be before from")
		return nil, v
	}
	if _, err := s.lawyers.GetByID(ctx, lawyerID); err != nil {
		return nil, scheduling.Internal("get lawyer", err)
	}
	blocks, err := s.rules.ListBlocked(ctx, lawyerID, start, end)
	if err != nil {
		return nil, scheduling.Internal("list blocks", err)
	}
	if blocks == nil {
		blocks = []*scheduling.Rule{}
	}
	return blocks, nil
}

func coveredBy(blocks []*scheduling.Rule, d calendar.Date) *scheduling.Rule {
	for _, b := range blocks {
		if b.Covers(d) {
			return b
		}
	}
	return nil
}

func uniqueSorted(dates []calendar.Date) []calendar.Date {
	seen := make(map[calendar.Date]bool, len(dates))
	out := make([]calendar.Date, 0, len(dates))
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
