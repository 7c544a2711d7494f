package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lawfirm/booking/internal/domain/consultation"
	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/internal/platform/db/dbtest"
	"github.com/lawfirm/booking/internal/platform/notification"
	"github.com/lawfirm/booking/pkg/calendar"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

type failingNotifier struct{ err error }

func (n failingNotifier) Notify(context.Context, string, string, map[string]string) error { return n.err }

type pgFixture struct {
	pool   *pgxpool.Pool
	lawyer *scheduling.Lawyer
	rules  scheduling.RuleRepository
	appts  consultation.Repository
	store  notification.Store
	admin  auth.Session
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Pool(t)
	ctx := context.Background()
	f := &pgFixture{
		pool:  pool,
		rules: scheduling.NewRuleRepoPG(pool),
		appts: consultation.NewRepoPG(pool),
		store: notification.NewStorePG(pool),
		admin: auth.Session{UserID: uuid.NewString(), Role: auth.RoleAdmin, IsAuthenticated: true},
	}
	f.lawyer = &scheduling.Lawyer{FullName: "Ada Counsel", Email: "ada@example.com", IsActive: true, MaxBookingWeeks: 104}
	if err := scheduling.NewLawyerRepoPG(pool).Create(ctx, f.lawyer); err != nil {
		t.Fatalf("create lawyer: %v", err)
	}
	for i, email := range []string{"a@example.com", "b@example.com"} {
		a := &consultation.Appointment{
			LawyerID:    f.lawyer.ID,
			Date:        calendar.MustParseDate("2026-05-01"),
			Time:        calendar.Clock(9+i, 0),
			Status:      consultation.StatusPending,
			ClientName:  "Client",
			ClientEmail: email,
		}
		if err := f.appts.Create(ctx, a); err != nil {
			t.Fatalf("create appointment: %v", err)
		}
	}
	return f
}

func (f *pgFixture) service(notifier Notifier) *Service {
	return NewService(db.NewTxManager(f.pool), scheduling.NewLawyerRepoPG(f.pool), f.rules, f.appts, notifier, time.UTC, zerolog.Nop()).
		WithClock(func() time.Time { return time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC) })
}

func TestBlockDate_Postgres(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	queue := notification.NewQueue(notification.NewTemplateEngine(), f.store, "Test Firm")

	res, err := f.service(queue).BlockDate(ctx, f.admin, BlockDateCommand{
		LawyerID: f.lawyer.ID, Date: calendar.MustParseDate("2026-05-01"), Reason: "Vacation",
	})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if res.CancelledAppointments != 2 || res.NotificationsQueued != 2 {
		t.Errorf("expected 2 cancellations and 2 notices, got %+v", res)
	}

	n, err := f.appts.CountForDate(ctx, f.lawyer.ID, calendar.MustParseDate("2026-05-01"), scheduling.CapacityStatuses)
	if err != nil || n != 0 {
		t.Errorf("expected no active appointments left, got %d, %v", n, err)
	}
	due, err := f.store.ClaimDue(ctx, 10, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 outbox rows, got %d", len(due))
	}
	for _, n := range due {
		if n.TemplateID != notification.TemplateConsultationCancelled {
			t.Errorf("unexpected template %s", n.TemplateID)
		}
	}

	_, err = f.service(queue).BlockDate(ctx, f.admin, BlockDateCommand{
		LawyerID: f.lawyer.ID, Date: calendar.MustParseDate("2026-05-01"), Reason: "Again",
	})
	if !errors.Is(err, scheduling.ErrAlreadyBlocked) {
		t.Errorf("expected ErrAlreadyBlocked, got %v", err)
	}
}

func TestBlockDate_PostgresRollsBackOnNotifyFailure(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	_, err := f.service(failingNotifier{err: errors.New("outbox down")}).BlockDate(ctx, f.admin, BlockDateCommand{
		LawyerID: f.lawyer.ID, Date: calendar.MustParseDate("2026-05-01"), Reason: "Vacation",
	})
	if err == nil {
		t.Fatal("expected the block to fail")
	}

	blocks, err := f.rules.ListBlocked(ctx, f.lawyer.ID, calendar.MustParseDate("2026-05-01"), calendar.MustParseDate("2026-05-01"))
	if err != nil || len(blocks) != 0 {
		t.Errorf("expected no block after rollback, got %d, %v", len(blocks), err)
	}
	n, err := f.appts.CountForDate(ctx, f.lawyer.ID, calendar.MustParseDate("2026-05-01"), scheduling.CapacityStatuses)
	if err != nil || n != 2 {
		t.Errorf("expected both appointments still active, got %d, %v", n, err)
	}
}
