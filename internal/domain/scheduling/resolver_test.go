package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/pkg/calendar"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func date(s string) calendar.Date { return calendar.MustParseDate(s) }

func datePtr(s string) *calendar.Date {
	d := date(s)
	return &d
}

func weeklyRule(days calendar.WeekdaySet, max int, createdOffset time.Duration) *Rule {
	return &Rule{
		ID:                  uuid.New(),
		Kind:                KindWeekly,
		Weekdays:            days,
		StartTime:           calendar.Clock(9, 0),
		EndTime:             calendar.Clock(17, 0),
		MaxAppointments:     max,
		SlotDurationMinutes: 60,
		IsActive:            true,
		CreatedAt:           baseTime.Add(createdOffset),
		UpdatedAt:           baseTime.Add(createdOffset),
	}
}

func oneTimeRule(on string, max int) *Rule {
	return &Rule{
		ID:                  uuid.New(),
		Kind:                KindOneTime,
		SpecificDate:        datePtr(on),
		StartTime:           calendar.Clock(10, 0),
		EndTime:             calendar.Clock(14, 0),
		MaxAppointments:     max,
		SlotDurationMinutes: 30,
		IsActive:            true,
		CreatedAt:           baseTime,
		UpdatedAt:           baseTime,
	}
}

func blockedRange(from, to, reason string) *Rule {
	return &Rule{
		ID:         uuid.New(),
		Kind:       KindBlocked,
		RangeStart: datePtr(from),
		RangeEnd:   datePtr(to),
		Reason:     reason,
		IsActive:   true,
	}
}

func TestRuleSet_BlockedWins(t *testing.T) {
	d := date("2026-03-05")
	rs := NewRuleSet([]*Rule{
		weeklyRule(calendar.AllWeekdays, 2, 0),
		oneTimeRule("2026-03-05", 5),
		NewBlockedRule(uuid.New(), d, "Court day", nil),
	})

	ds, ok := rs.Resolve(d, 0)
	if !ok {
		t.Fatal("expected a status")
	}
	if ds.Status != StatusBlocked || ds.Reason != "Court day" {
		t.Errorf("expected blocked with reason, got %+v", ds)
	}
	if ds.StartTime != nil || ds.SlotsRemaining != 0 {
		t.Errorf("blocked status should carry no window, got %+v", ds)
	}
}

func TestRuleSet_OneTimeOverridesWeekly(t *testing.T) {
	rs := NewRuleSet([]*Rule{
		weeklyRule(calendar.AllWeekdays, 2, 0),
		oneTimeRule("2026-03-05", 5),
	})
	ds, _ := rs.Resolve(date("2026-03-05"), 0)
	if ds.MaxAppointments != 5 || ds.Kind != KindOneTime {
		t.Errorf("expected one-time capacity 5, got %+v", ds)
	}
	ds, _ = rs.Resolve(date("2026-03-06"), 0)
	if ds.MaxAppointments != 2 || ds.Kind != KindWeekly {
		t.Errorf("expected weekly capacity 2, got %+v", ds)
	}
}

func TestRuleSet_Capacity(t *testing.T) {
	rs := NewRuleSet([]*Rule{weeklyRule(calendar.AllWeekdays, 3, 0)})
	d := date("2026-03-10")

	ds, _ := rs.Resolve(d, 3)
	if ds.Status != StatusFullyBooked || ds.SlotsRemaining != 0 {
		t.Errorf("expected fully booked, got %+v", ds)
	}
	ds, _ = rs.Resolve(d, 2)
	if ds.Status != StatusAvailable || ds.SlotsRemaining != 1 {
		t.Errorf("expected available with 1 remaining, got %+v", ds)
	}
}

func TestRuleSet_WeekdaySetRestrictsWeekly(t *testing.T) {
	rs := NewRuleSet([]*Rule{weeklyRule(calendar.NewWeekdaySet(time.Monday, time.Wednesday), 2, 0)})
	// 2026-03-09 is a Monday.
	if _, ok := rs.Resolve(date("2026-03-09"), 0); !ok {
		t.Error("expected Monday to resolve")
	}
	if _, ok := rs.Resolve(date("2026-03-10"), 0); ok {
		t.Error("expected Tuesday to be absent")
	}
}

func TestRuleSet_WeeklyOrderAndSpareCapacity(t *testing.T) {
	first := weeklyRule(calendar.AllWeekdays, 2, 0)
	second := weeklyRule(calendar.AllWeekdays, 4, time.Hour)
	rs := NewRuleSet([]*Rule{second, first})
	d := date("2026-03-10")

	if got := rs.Effective(d, 0); got.ID != first.ID {
		t.Error("expected the earliest created weekly rule to win")
	}
	if got := rs.Effective(d, 2); got.ID != second.ID {
		t.Error("expected the rule with spare capacity to win")
	}
	if got := rs.Effective(d, 9); got.ID != first.ID {
		t.Error("expected the first applicable rule when all are full")
	}
	ds, _ := rs.Resolve(d, 9)
	if ds.Status != StatusFullyBooked {
		t.Errorf("expected fully booked, got %s", ds.Status)
	}
}

func TestRuleSet_LatestOneTimeWins(t *testing.T) {
	older := oneTimeRule("2026-03-05", 2)
	newer := oneTimeRule("2026-03-05", 7)
	newer.UpdatedAt = older.UpdatedAt.Add(time.Minute)
	rs := NewRuleSet([]*Rule{newer, older})
	if got := rs.OneTimeFor(date("2026-03-05")); got.ID != newer.ID {
		t.Error("expected the most recently updated one-time rule")
	}
}

func TestRuleSet_LegacyZeroCapacityIsBlocked(t *testing.T) {
	legacy := oneTimeRule("2026-03-05", 0)
	rs := NewRuleSet([]*Rule{weeklyRule(calendar.AllWeekdays, 2, 0), legacy})
	ds, _ := rs.Resolve(date("2026-03-05"), 0)
	if ds.Status != StatusBlocked || ds.Reason != "unavailable" {
		t.Errorf("expected legacy row to read as blocked, got %+v", ds)
	}
}

func TestRuleSet_LegacyEmptyWeekdayMask(t *testing.T) {
	rs := NewRuleSet([]*Rule{weeklyRule(0, 2, 0)})
	for _, d := range calendar.Range(date("2026-03-08"), date("2026-03-14")) {
		if _, ok := rs.Resolve(d, 0); !ok {
			t.Errorf("expected %s to resolve", d)
		}
	}
}

func TestRuleSet_InactiveIgnored(t *testing.T) {
	r := weeklyRule(calendar.AllWeekdays, 2, 0)
	r.IsActive = false
	if !NewRuleSet([]*Rule{r}).Empty() {
		t.Error("expected inactive rules to be dropped")
	}
}

func TestResolveWindow(t *testing.T) {
	today := date("2026-03-01")
	tests := []struct {
		name      string
		req       WindowRequest
		wantStart string
		wantEnd   string
		wantWeeks int
	}{
		{"defaults", WindowRequest{}, "2026-03-01", "2027-02-28", 52},
		{"past start clamped", WindowRequest{StartDate: datePtr("2025-12-01"), Weeks: 1}, "2026-03-01", "2026-03-08", 1},
		{"explicit end", WindowRequest{StartDate: datePtr("2026-04-08"), EndDate: datePtr("2026-04-15")}, "2026-04-08", "2026-04-15", 52},
		{"end before start corrected", WindowRequest{StartDate: datePtr("2026-04-08"), EndDate: datePtr("2026-04-01"), Weeks: 2}, "2026-04-08", "2026-04-22", 2},
		{"weeks clamped", WindowRequest{Weeks: 500}, "2026-03-01", "2028-02-27", 104},
		{"span capped", WindowRequest{EndDate: datePtr("2030-01-01")}, "2026-03-01", "2028-02-27", 52},
		{"late start capped at horizon", WindowRequest{StartDate: datePtr("2027-12-01")}, "2027-12-01", "2028-02-27", 52},
		{"far future start clamped", WindowRequest{StartDate: datePtr("2031-08-22")}, "2028-02-27", "2028-02-27", 52},
		{"far future start and end clamped", WindowRequest{StartDate: datePtr("2031-08-22"), EndDate: datePtr("2031-09-19")}, "2028-02-27", "2028-02-27", 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ResolveWindow(today, tt.req, 52, 104)
			if w.Start.String() != tt.wantStart || w.End.String() != tt.wantEnd || w.Weeks != tt.wantWeeks {
				t.Errorf("got %s..%s weeks=%d, want %s..%s weeks=%d",
					w.Start, w.End, w.Weeks, tt.wantStart, tt.wantEnd, tt.wantWeeks)
			}
			if w.MaxWeeks != 104 {
				t.Errorf("expected max weeks 104, got %d", w.MaxWeeks)
			}
		})
	}
}

func TestBuildAvailability_AprilScenario(t *testing.T) {
	rs := NewRuleSet([]*Rule{
		weeklyRule(calendar.AllWeekdays, 4, 0),
		blockedRange("2026-04-10", "2026-04-12", "Conference"),
	})
	w := Window{Start: date("2026-04-08"), End: date("2026-04-15"), Weeks: 52, MaxWeeks: 104}
	res := BuildAvailability(rs, w, nil)

	want := []string{"2026-04-08", "2026-04-09", "2026-04-13", "2026-04-14", "2026-04-15"}
	if len(res.AvailableDates) != len(want) {
		t.Fatalf("expected %d available dates, got %v", len(want), res.AvailableDates)
	}
	for i, d := range want {
		if res.AvailableDates[i].String() != d {
			t.Errorf("available[%d] = %s, want %s", i, res.AvailableDates[i], d)
		}
	}
	for _, d := range []string{"2026-04-10", "2026-04-11", "2026-04-12"} {
		if res.DateStatusMap[d].Status != StatusBlocked {
			t.Errorf("expected %s blocked, got %q", d, res.DateStatusMap[d].Status)
		}
	}
	if len(res.Detailed) != 8 {
		t.Errorf("expected 8 resolved dates, got %d", len(res.Detailed))
	}
	s := res.Summary
	if s.AvailableCount != 5 || s.BlockedCount != 3 || s.FullyBookedCount != 0 || s.WeeklyScheduleCount != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if res.DateRange.TotalDays != 8 {
		t.Errorf("expected 8 total days, got %d", res.DateRange.TotalDays)
	}
}

func TestBuildAvailability_OneStatusPerDate(t *testing.T) {
	rs := NewRuleSet([]*Rule{
		weeklyRule(calendar.AllWeekdays, 2, 0),
		oneTimeRule("2026-04-09", 1),
		blockedRange("2026-04-09", "2026-04-10", "Trial"),
	})
	w := Window{Start: date("2026-04-08"), End: date("2026-04-12")}
	counts := map[calendar.Date]int{date("2026-04-11"): 2}
	res := BuildAvailability(rs, w, counts)

	seen := map[calendar.Date]int{}
	for _, ds := range res.Detailed {
		seen[ds.Date]++
	}
	for d, n := range seen {
		if n != 1 {
			t.Errorf("%s reported %d times", d, n)
		}
	}
	if res.DateStatusMap["2026-04-09"].Status != StatusBlocked {
		t.Error("expected block to win over one-time")
	}
	if res.DateStatusMap["2026-04-11"].Status != StatusFullyBooked {
		t.Error("expected fully booked on 2026-04-11")
	}
	if res.Summary.OneTimeCount != 1 || res.Summary.FullyBookedCount != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
}

func TestBuildSlots_PerSlotExclusivity(t *testing.T) {
	r := weeklyRule(calendar.AllWeekdays, 5, 0)
	d := date("2026-03-10")
	list := BuildSlots(d, r, 1, map[calendar.ClockTime]int{calendar.Clock(10, 0): 1})

	if list.SlotsRemaining != 4 || list.TotalBooked != 1 {
		t.Fatalf("unexpected day counters %+v", list)
	}
	if len(list.TimeSlots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(list.TimeSlots))
	}
	for _, s := range list.TimeSlots {
		want := s.Time24h != "10:00"
		if s.Available != want {
			t.Errorf("slot %s available=%v, want %v", s.Time24h, s.Available, want)
		}
		if s.SlotsRemaining != 4 {
			t.Errorf("slot %s slots_remaining=%d", s.Time24h, s.SlotsRemaining)
		}
	}
	first := list.TimeSlots[0]
	if first.Time != "09:00:00" || first.Display != "9:00 AM - 10:00 AM" {
		t.Errorf("unexpected first slot %+v", first)
	}
}

func TestBuildSlots_DayCapacityExhausted(t *testing.T) {
	r := weeklyRule(calendar.AllWeekdays, 2, 0)
	list := BuildSlots(date("2026-03-10"), r, 2, map[calendar.ClockTime]int{
		calendar.Clock(9, 0): 1, calendar.Clock(11, 0): 1,
	})
	for _, s := range list.TimeSlots {
		if s.Available {
			t.Errorf("slot %s should be unavailable", s.Time24h)
		}
	}
	if list.Message != "fully booked" {
		t.Errorf("unexpected message %q", list.Message)
	}
}

func TestBuildSlots_NoRuleAndBlocked(t *testing.T) {
	d := date("2026-03-10")
	if l := BuildSlots(d, nil, 0, nil); l.Message != "no availability for this date" || len(l.TimeSlots) != 0 {
		t.Errorf("unexpected list %+v", l)
	}
	b := NewBlockedRule(uuid.New(), d, "x", nil)
	if l := BuildSlots(d, b, 0, nil); l.Message != "date is blocked" || len(l.TimeSlots) != 0 {
		t.Errorf("unexpected list %+v", l)
	}
}

func TestOnGrid(t *testing.T) {
	r := oneTimeRule("2026-03-05", 3) // 10:00-14:00, 30 minutes
	tests := []struct {
		at   calendar.ClockTime
		want bool
	}{
		{calendar.Clock(10, 0), true},
		{calendar.Clock(13, 30), true},
		{calendar.Clock(10, 15), false},
		{calendar.Clock(14, 0), false},
		{calendar.Clock(9, 30), false},
	}
	for _, tt := range tests {
		if got := OnGrid(r, tt.at); got != tt.want {
			t.Errorf("OnGrid(%s) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	lawyer := uuid.New()
	valid := weeklyRule(calendar.AllWeekdays, 2, 0)
	valid.LawyerID = lawyer
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	zero := weeklyRule(calendar.AllWeekdays, 0, 0)
	zero.LawyerID = lawyer
	if err := zero.Validate(); err == nil {
		t.Error("expected zero capacity to be rejected")
	}

	inverted := weeklyRule(calendar.AllWeekdays, 2, 0)
	inverted.LawyerID = lawyer
	inverted.StartTime, inverted.EndTime = calendar.Clock(17, 0), calendar.Clock(9, 0)
	if err := inverted.Validate(); err == nil {
		t.Error("expected inverted window to be rejected")
	}

	blocked := NewBlockedRule(lawyer, date("2026-03-05"), "x", nil)
	if err := blocked.Validate(); err == nil {
		t.Error("expected blocked kind to be rejected")
	}

	evening := weeklyRule(calendar.AllWeekdays, 2, 0)
	evening.LawyerID = lawyer
	evening.StartTime, evening.EndTime = calendar.Clock(20, 0), calendar.EndOfDay
	if err := evening.Validate(); err != nil {
		t.Errorf("expected a window closing at midnight to be valid, got %v", err)
	}
	slots := BuildSlots(date("2026-03-05"), evening, 0, nil)
	if n := len(slots.TimeSlots); n != 4 {
		t.Fatalf("expected 4 slots up to midnight, got %d", n)
	}
	if last := slots.TimeSlots[3]; last.Time24h != "23:00" || last.Display != "11:00 PM - 12:00 AM" {
		t.Errorf("unexpected last slot %+v", last)
	}

	lateStart := weeklyRule(calendar.AllWeekdays, 2, 0)
	lateStart.LawyerID = lawyer
	lateStart.StartTime, lateStart.EndTime = calendar.EndOfDay, calendar.EndOfDay
	if err := lateStart.Validate(); err == nil {
		t.Error("expected a 24:00 start to be rejected")
	}
}
