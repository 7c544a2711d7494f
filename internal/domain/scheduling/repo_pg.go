package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/pkg/calendar"
)

// =========== Lawyer Repository ===========

type lawyerRepoPG struct{ pool *pgxpool.Pool }

func NewLawyerRepoPG(pool *pgxpool.Pool) LawyerRepository { return &lawyerRepoPG{pool: pool} }

func (r *lawyerRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const lawyerCols = `id, full_name, email, is_active, max_booking_weeks, created_at, updated_at`

func (r *lawyerRepoPG) scan(row pgx.Row) (*Lawyer, error) {
	var l Lawyer
	err := row.Scan(&l.ID, &l.FullName, &l.Email, &l.IsActive, &l.MaxBookingWeeks, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: lawyer", ErrNotFound)
	}
	return &l, err
}

func (r *lawyerRepoPG) Create(ctx context.Context, l *Lawyer) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lawyers (id, full_name, email, is_active, max_booking_weeks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		l.ID, l.FullName, l.Email, l.IsActive, l.MaxBookingWeeks,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (r *lawyerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Lawyer, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+lawyerCols+` FROM lawyers WHERE id = $1`, id))
}

func (r *lawyerRepoPG) LockForUpdate(ctx context.Context, id uuid.UUID) (*Lawyer, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+lawyerCols+` FROM lawyers WHERE id = $1 FOR UPDATE`, id))
}

// =========== Rule Repository ===========

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const ruleCols = `id, lawyer_id, kind, weekday_mask, specific_date, range_start, range_end,
	start_time, end_time, max_appointments, slot_duration_minutes, is_active, reason,
	created_by, created_at, updated_at`

func (r *ruleRepoPG) scanRule(row pgx.Row) (*Rule, error) {
	var (
		rule                           Rule
		kind                           string
		mask                           int16
		specific, rangeStart, rangeEnd *time.Time
		start, end                     pgtype.Time
		maxAppts, slotMinutes          *int
		reason                         *string
	)
	err := row.Scan(&rule.ID, &rule.LawyerID, &kind, &mask, &specific, &rangeStart, &rangeEnd,
		&start, &end, &maxAppts, &slotMinutes, &rule.IsActive, &reason,
		&rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Kind = RuleKind(kind)
	rule.Weekdays = calendar.WeekdaySet(mask)
	rule.SpecificDate = dateFromPG(specific)
	rule.RangeStart = dateFromPG(rangeStart)
	rule.RangeEnd = dateFromPG(rangeEnd)
	rule.StartTime = ClockFromPG(start)
	rule.EndTime = ClockFromPG(end)
	if maxAppts != nil {
		rule.MaxAppointments = *maxAppts
	}
	if slotMinutes != nil {
		rule.SlotDurationMinutes = *slotMinutes
	}
	if reason != nil {
		rule.Reason = *reason
	}
	normalizeLegacy(&rule)
	return &rule, nil
}

func (r *ruleRepoPG) scanRules(rows pgx.Rows) ([]*Rule, error) {
	defer rows.Close()
	var out []*Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	rule.ID = uuid.New()
	var start, end pgtype.Time
	var maxAppts, slotMinutes *int
	if rule.Kind != KindBlocked {
		start, end = ClockToPG(rule.StartTime), ClockToPG(rule.EndTime)
		maxAppts, slotMinutes = &rule.MaxAppointments, &rule.SlotDurationMinutes
	}
	var reason *string
	if rule.Reason != "" {
		reason = &rule.Reason
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_rules (id, lawyer_id, kind, weekday_mask, specific_date, range_start, range_end,
			start_time, end_time, max_appointments, slot_duration_minutes, is_active, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		rule.ID, rule.LawyerID, string(rule.Kind), int16(rule.Weekdays),
		dateToPG(rule.SpecificDate), dateToPG(rule.RangeStart), dateToPG(rule.RangeEnd),
		start, end, maxAppts, slotMinutes, rule.IsActive, reason, rule.CreatedBy,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	rule, err := r.scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM schedule_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: schedule rule", ErrNotFound)
	}
	return rule, err
}

func (r *ruleRepoPG) ListActiveByLawyer(ctx context.Context, lawyerID uuid.UUID) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM schedule_rules
		WHERE lawyer_id = $1 AND is_active = TRUE
		ORDER BY created_at, id`, lawyerID)
	if err != nil {
		return nil, err
	}
	return r.scanRules(rows)
}

// ListBlocked returns active blocks intersecting [from, to], including
// legacy zero-capacity one-time rows.
func (r *ruleRepoPG) ListBlocked(ctx context.Context, lawyerID uuid.UUID, from, to calendar.Date) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM schedule_rules
		WHERE lawyer_id = $1 AND is_active = TRUE
		  AND (kind = 'blocked' OR (kind = 'one_time' AND max_appointments = 0))
		  AND (
		    specific_date BETWEEN $2 AND $3
		    OR (range_start <= $3 AND range_end >= $2)
		  )
		ORDER BY COALESCE(specific_date, range_start), id`,
		lawyerID, from.Time(), to.Time())
	if err != nil {
		return nil, err
	}
	return r.scanRules(rows)
}

func (r *ruleRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE schedule_rules SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule rule", ErrNotFound)
	}
	return nil
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule rule", ErrNotFound)
	}
	return nil
}

func dateFromPG(t *time.Time) *calendar.Date {
	if t == nil {
		return nil
	}
	d := calendar.DateOf(*t)
	return &d
}

func dateToPG(d *calendar.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

// ClockFromPG converts a scanned TIME column.
func ClockFromPG(t pgtype.Time) calendar.ClockTime {
	if !t.Valid {
		return 0
	}
	return calendar.ClockTime(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// ClockToPG converts a wall-clock time into a TIME parameter.
func ClockToPG(c calendar.ClockTime) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}
}

