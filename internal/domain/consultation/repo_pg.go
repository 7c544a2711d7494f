package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/pkg/calendar"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const apptCols = `id, lawyer_id, appointment_date, appointment_time, status, client_name, client_email,
	COALESCE(client_phone, ''), COALESCE(practice_area, ''), COALESCE(message, ''),
	COALESCE(cancellation_reason, ''), created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var (
		a  Appointment
		d  time.Time
		at pgtype.Time
	)
	err := row.Scan(&a.ID, &a.LawyerID, &d, &at, &a.Status, &a.ClientName, &a.ClientEmail,
		&a.ClientPhone, &a.PracticeArea, &a.Message, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Date = calendar.DateOf(d)
	a.Time = scheduling.ClockFromPG(at)
	return &a, nil
}

func (r *appointmentRepoPG) scanAppts(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, lawyer_id, appointment_date, appointment_time, status,
			client_name, client_email, client_phone, practice_area, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.LawyerID, a.Date.Time(), scheduling.ClockToPG(a.Time), a.Status,
		a.ClientName, a.ClientEmail, nullable(a.ClientPhone), nullable(a.PracticeArea), nullable(a.Message),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment", scheduling.ErrNotFound)
	}
	return a, err
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status, reason string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET status = $2, cancellation_reason = COALESCE($3, cancellation_reason), updated_at = NOW()
		WHERE id = $1`, id, status, nullable(reason))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appointment", scheduling.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepoPG) ListByLawyer(ctx context.Context, lawyerID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE lawyer_id = $1`
	args := []interface{}{lawyerID}
	idx := 2

	if f.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, f.Date.Time())
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY appointment_date, appointment_time, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.scanAppts(rows)
	return items, total, err
}

func (r *appointmentRepoPG) ListActiveOn(ctx context.Context, lawyerID uuid.UUID, dates []calendar.Date) ([]*Appointment, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE lawyer_id = $1 AND appointment_date = ANY($2) AND status = ANY($3)
		ORDER BY appointment_date, appointment_time, id`,
		lawyerID, datesToPG(dates), scheduling.CapacityStatuses)
	if err != nil {
		return nil, err
	}
	return r.scanAppts(rows)
}

func (r *appointmentRepoPG) CancelMany(ctx context.Context, ids []uuid.UUID, reason string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancellation_reason = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = ANY($3)`,
		ids, reason, scheduling.CapacityStatuses)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// -- scheduling.AppointmentCounter --

func (r *appointmentRepoPG) CountForDate(ctx context.Context, lawyerID uuid.UUID, d calendar.Date, statuses []string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE lawyer_id = $1 AND appointment_date = $2 AND status = ANY($3)`,
		lawyerID, d.Time(), statuses).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) CountForSlot(ctx context.Context, lawyerID uuid.UUID, d calendar.Date, at calendar.ClockTime, statuses []string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE lawyer_id = $1 AND appointment_date = $2 AND appointment_time = $3 AND status = ANY($4)`,
		lawyerID, d.Time(), scheduling.ClockToPG(at), statuses).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) CountByDate(ctx context.Context, lawyerID uuid.UUID, from, to calendar.Date, statuses []string) (map[calendar.Date]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT appointment_date, COUNT(*) FROM appointments
		WHERE lawyer_id = $1 AND appointment_date BETWEEN $2 AND $3 AND status = ANY($4)
		GROUP BY appointment_date`,
		lawyerID, from.Time(), to.Time(), statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[calendar.Date]int)
	for rows.Next() {
		var (
			d time.Time
			n int
		)
		if err := rows.Scan(&d, &n); err != nil {
			return nil, err
		}
		out[calendar.DateOf(d)] = n
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) CountByTime(ctx context.Context, lawyerID uuid.UUID, d calendar.Date, statuses []string) (map[calendar.ClockTime]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT appointment_time, COUNT(*) FROM appointments
		WHERE lawyer_id = $1 AND appointment_date = $2 AND status = ANY($3)
		GROUP BY appointment_time`,
		lawyerID, d.Time(), statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[calendar.ClockTime]int)
	for rows.Next() {
		var (
			at pgtype.Time
			n  int
		)
		if err := rows.Scan(&at, &n); err != nil {
			return nil, err
		}
		out[scheduling.ClockFromPG(at)] = n
	}
	return out, rows.Err()
}

func datesToPG(dates []calendar.Date) []time.Time {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		out[i] = d.Time()
	}
	return out
}
