package scheduling

import (
	"sort"

	"github.com/lawfirm/booking/pkg/calendar"
)

// RuleSet is the active rules of one lawyer, partitioned by kind. It answers
// "which rule governs this date" with the precedence blocked, then one-time,
// then weekly.
type RuleSet struct {
	weekly  []*Rule
	oneTime map[calendar.Date]*Rule
	blocked []*Rule
}

// NewRuleSet partitions rules. Inactive rules are dropped. Weekly rules keep
// (created_at, id) order; for two one-time rules on the same date the most
// recently updated one wins.
func NewRuleSet(rules []*Rule) *RuleSet {
	rs := &RuleSet{oneTime: make(map[calendar.Date]*Rule)}
	for _, r := range rules {
		if r == nil || !r.IsActive {
			continue
		}
		normalizeLegacy(r)
		switch r.Kind {
		case KindWeekly:
			rs.weekly = append(rs.weekly, r)
		case KindOneTime:
			if r.SpecificDate == nil {
				continue
			}
			if cur, ok := rs.oneTime[*r.SpecificDate]; ok && !r.UpdatedAt.After(cur.UpdatedAt) {
				continue
			}
			rs.oneTime[*r.SpecificDate] = r
		case KindBlocked:
			rs.blocked = append(rs.blocked, r)
		}
	}
	sort.SliceStable(rs.weekly, func(i, j int) bool {
		a, b := rs.weekly[i], rs.weekly[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return rs
}

func (rs *RuleSet) Empty() bool {
	return len(rs.weekly) == 0 && len(rs.oneTime) == 0 && len(rs.blocked) == 0
}

func (rs *RuleSet) WeeklyCount() int { return len(rs.weekly) }

// BlockFor returns the blocked rule covering d, if any.
func (rs *RuleSet) BlockFor(d calendar.Date) *Rule {
	for _, b := range rs.blocked {
		if b.Covers(d) {
			return b
		}
	}
	return nil
}

func (rs *RuleSet) OneTimeFor(d calendar.Date) *Rule {
	return rs.oneTime[d]
}

// Effective returns the rule governing d given booked active appointments
// that day. Among weekly rules the first one with spare capacity wins, then
// the first one that applies at all. It returns nil when nothing applies.
func (rs *RuleSet) Effective(d calendar.Date, booked int) *Rule {
	if b := rs.BlockFor(d); b != nil {
		return b
	}
	if ot := rs.OneTimeFor(d); ot != nil {
		return ot
	}
	var first *Rule
	for _, w := range rs.weekly {
		if !w.AppliesOn(d) {
			continue
		}
		if booked < w.MaxAppointments {
			return w
		}
		if first == nil {
			first = w
		}
	}
	return first
}

// Resolve computes the status of d. The second result is false when no rule
// applies and the date should be left out.
func (rs *RuleSet) Resolve(d calendar.Date, booked int) (DateStatus, bool) {
	r := rs.Effective(d, booked)
	if r == nil {
		return DateStatus{}, false
	}
	if r.Kind == KindBlocked {
		return DateStatus{
			Date:   d,
			Status: StatusBlocked,
			Kind:   KindBlocked,
			RuleID: r.ID,
			Reason: r.Reason,
		}, true
	}

	start, end := r.StartTime, r.EndTime
	ds := DateStatus{
		Date:            d,
		MaxAppointments: r.MaxAppointments,
		BookedCount:     booked,
		Kind:            r.Kind,
		RuleID:          r.ID,
		StartTime:       &start,
		EndTime:         &end,
		SlotDuration:    r.SlotDurationMinutes,
	}
	if booked < r.MaxAppointments {
		ds.Status = StatusAvailable
		ds.SlotsRemaining = r.MaxAppointments - booked
	} else {
		ds.Status = StatusFullyBooked
	}
	return ds, true
}

// BlockedDates lists the dates inside [from, to] covered by a block.
func (rs *RuleSet) BlockedDates(from, to calendar.Date) []calendar.Date {
	var out []calendar.Date
	for _, d := range calendar.Range(from, to) {
		if rs.BlockFor(d) != nil {
			out = append(out, d)
		}
	}
	return out
}

// OneTimeCountIn counts one-time rules dated inside [from, to].
func (rs *RuleSet) OneTimeCountIn(from, to calendar.Date) int {
	n := 0
	for d := range rs.oneTime {
		if d.Between(from, to) {
			n++
		}
	}
	return n
}

// WindowRequest carries the caller's optional window bounds.
type WindowRequest struct {
	StartDate *calendar.Date
	EndDate   *calendar.Date
	Weeks     int
}

// Window is a resolved, clamped query window.
type Window struct {
	Start    calendar.Date
	End      calendar.Date
	Weeks    int
	MaxWeeks int
}

// BookingHorizon is the last date that can be booked maxWeeks out from today.
func BookingHorizon(today calendar.Date, maxWeeks int) calendar.Date {
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	return today.AddDays(maxWeeks * 7)
}

// ResolveWindow applies the defaulting and clamping rules: the start never
// lies before today, weeks are capped at maxWeeks, an end that is not after
// the start falls back to the default length, and the window never reaches
// past the booking horizon.
func ResolveWindow(today calendar.Date, req WindowRequest, defaultWeeks, maxWeeks int) Window {
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	if defaultWeeks <= 0 {
		defaultWeeks = DefaultBookingWeeks
	}
	weeks := req.Weeks
	if weeks <= 0 {
		weeks = defaultWeeks
	}
	if weeks > maxWeeks {
		weeks = maxWeeks
	}

	horizon := BookingHorizon(today, maxWeeks)
	start := today
	if req.StartDate != nil && req.StartDate.After(today) {
		start = *req.StartDate
	}
	if start.After(horizon) {
		start = horizon
	}

	end := start.AddDays(weeks * 7)
	if req.EndDate != nil && req.EndDate.After(start) {
		end = *req.EndDate
	}
	if end.After(horizon) {
		end = horizon
	}
	return Window{Start: start, End: end, Weeks: weeks, MaxWeeks: maxWeeks}
}

// BuildAvailability resolves every date of w. counts holds active
// appointments per date; missing dates count as zero.
func BuildAvailability(rs *RuleSet, w Window, counts map[calendar.Date]int) *AvailabilityResult {
	res := &AvailabilityResult{
		AvailableDates: []calendar.Date{},
		Detailed:       []DateStatus{},
		DateStatusMap:  make(map[string]DateStatus),
		DateRange: DateRange{
			StartDate: w.Start,
			EndDate:   w.End,
			Weeks:     w.Weeks,
			MaxWeeks:  w.MaxWeeks,
			TotalDays: w.Start.DaysUntil(w.End) + 1,
		},
	}
	res.Summary.WeeklyScheduleCount = rs.WeeklyCount()
	res.Summary.OneTimeCount = rs.OneTimeCountIn(w.Start, w.End)

	for _, d := range calendar.Range(w.Start, w.End) {
		ds, ok := rs.Resolve(d, counts[d])
		if !ok {
			continue
		}
		res.Detailed = append(res.Detailed, ds)
		res.DateStatusMap[d.String()] = ds
		switch ds.Status {
		case StatusAvailable:
			res.AvailableDates = append(res.AvailableDates, d)
			res.Summary.AvailableCount++
		case StatusBlocked:
			res.Summary.BlockedCount++
		case StatusFullyBooked:
			res.Summary.FullyBookedCount++
		}
	}
	return res
}

// BuildSlots lays out the slot grid of rule r on date d. booked is the
// whole-day count; byTime holds counts per exact start time.
func BuildSlots(d calendar.Date, r *Rule, booked int, byTime map[calendar.ClockTime]int) *SlotList {
	list := &SlotList{TimeSlots: []TimeSlot{}, Date: d}
	if r == nil {
		list.Message = "no availability for this date"
		return list
	}
	if r.Kind == KindBlocked {
		list.Message = "date is blocked"
		return list
	}

	remaining := r.MaxAppointments - booked
	if remaining < 0 {
		remaining = 0
	}
	list.SlotDuration = r.SlotDurationMinutes
	list.MaxAppointments = r.MaxAppointments
	list.TotalBooked = booked
	list.SlotsRemaining = remaining

	starts, err := calendar.SplitSlots(r.StartTime, r.EndTime, r.SlotDurationMinutes)
	if err != nil {
		return list
	}
	for _, at := range starts {
		list.TimeSlots = append(list.TimeSlots, TimeSlot{
			Time:            at.SQL(),
			Time24h:         at.String(),
			Display:         at.Kitchen() + " - " + at.Add(r.SlotDurationMinutes).Kitchen(),
			Available:       byTime[at] == 0 && remaining > 0,
			BookedCount:     booked,
			MaxAppointments: r.MaxAppointments,
			SlotsRemaining:  remaining,
		})
	}
	if remaining == 0 {
		list.Message = "fully booked"
	}
	return list
}

// OnGrid reports whether at is the start of a slot in rule r's window.
func OnGrid(r *Rule, at calendar.ClockTime) bool {
	if r == nil || r.Kind == KindBlocked || r.SlotDurationMinutes <= 0 {
		return false
	}
	if at < r.StartTime || at.Add(r.SlotDurationMinutes) > r.EndTime {
		return false
	}
	return int(at-r.StartTime)%r.SlotDurationMinutes == 0
}
