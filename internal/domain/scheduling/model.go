package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lawfirm/booking/pkg/calendar"
)

type RuleKind string

const (
	KindWeekly  RuleKind = "weekly"
	KindOneTime RuleKind = "one_time"
	KindBlocked RuleKind = "blocked"
)

const (
	StatusAvailable   = "available"
	StatusBlocked     = "blocked"
	StatusFullyBooked = "fully_booked"
)

// CapacityStatuses are the appointment statuses that consume capacity.
var CapacityStatuses = []string{"pending", "confirmed"}

const (
	DefaultBookingWeeks = 52
	DefaultMaxWeeks     = 104
	MinSlotMinutes      = 5
	MaxReasonLength     = 500
)

// Lawyer is the owner of a set of schedule rules.
type Lawyer struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	IsActive        bool      `json:"is_active"`
	MaxBookingWeeks int       `json:"max_booking_weeks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Rule is one schedule rule. Kind decides which fields are meaningful:
// weekly rules use Weekdays, one-time rules use SpecificDate, and blocked
// rules use either SpecificDate or the RangeStart/RangeEnd pair.
type Rule struct {
	ID                  uuid.UUID           `json:"id"`
	LawyerID            uuid.UUID           `json:"lawyer_id"`
	Kind                RuleKind            `json:"kind"`
	Weekdays            calendar.WeekdaySet `json:"weekdays,omitempty"`
	SpecificDate        *calendar.Date      `json:"specific_date,omitempty"`
	RangeStart          *calendar.Date      `json:"range_start,omitempty"`
	RangeEnd            *calendar.Date      `json:"range_end,omitempty"`
	StartTime           calendar.ClockTime  `json:"start_time,omitempty"`
	EndTime             calendar.ClockTime  `json:"end_time,omitempty"`
	MaxAppointments     int                 `json:"max_appointments,omitempty"`
	SlotDurationMinutes int                 `json:"slot_duration_minutes,omitempty"`
	IsActive            bool                `json:"is_active"`
	Reason              string              `json:"reason,omitempty"`
	CreatedBy           *uuid.UUID          `json:"created_by,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewBlockedRule builds a single-date block.
func NewBlockedRule(lawyerID uuid.UUID, date calendar.Date, reason string, createdBy *uuid.UUID) *Rule {
	d := date
	return &Rule{
		LawyerID:     lawyerID,
		Kind:         KindBlocked,
		SpecificDate: &d,
		IsActive:     true,
		Reason:       strings.TrimSpace(reason),
		CreatedBy:    createdBy,
	}
}

// Covers reports whether a blocked rule blocks d.
func (r *Rule) Covers(d calendar.Date) bool {
	if r.Kind != KindBlocked {
		return false
	}
	if r.SpecificDate != nil && *r.SpecificDate == d {
		return true
	}
	if r.RangeStart != nil && r.RangeEnd != nil {
		return d.Between(*r.RangeStart, *r.RangeEnd)
	}
	return false
}

// AppliesOn reports whether a weekly rule generates availability on d.
func (r *Rule) AppliesOn(d calendar.Date) bool {
	return r.Kind == KindWeekly && r.Weekdays.Has(d.Weekday())
}

// IsRange reports whether a blocked rule uses the range form.
func (r *Rule) IsRange() bool {
	return r.Kind == KindBlocked && r.SpecificDate == nil && r.RangeStart != nil && r.RangeEnd != nil
}

// Validate checks a weekly or one-time rule before it is stored.
func (r *Rule) Validate() error {
	v := &ValidationError{}
	if r.LawyerID == uuid.Nil {
		v.Add("lawyer_id", "is required")
	}
	switch r.Kind {
	case KindWeekly:
		if r.SpecificDate != nil || r.RangeStart != nil || r.RangeEnd != nil {
			v.Add("kind", "weekly rules cannot carry dates")
		}
	case KindOneTime:
		if r.SpecificDate == nil {
			v.Add("specific_date", "is required for one_time rules")
		}
		if r.RangeStart != nil || r.RangeEnd != nil {
			v.Add("kind", "one_time rules cannot carry a range")
		}
	case KindBlocked:
		v.Add("kind", "blocked dates are managed through the blocking endpoints")
	default:
		v.Add("kind", "must be weekly or one_time")
	}
	if !r.StartTime.Valid() {
		v.Add("start_time", "must be a time of day")
	} else if !r.EndTime.ValidEnd() {
		v.Add("end_time", "must be a time of day or 24:00")
	} else if r.EndTime <= r.StartTime {
		v.Add("end_time", "must be after start_time")
	}
	if r.MaxAppointments < 1 {
		v.Add("max_appointments", "must be at least 1")
	}
	if r.SlotDurationMinutes < MinSlotMinutes {
		v.Add("slot_duration_minutes", "must be at least 5")
	} else if r.EndTime > r.StartTime && int(r.EndTime-r.StartTime) < r.SlotDurationMinutes {
		v.Add("slot_duration_minutes", "must fit inside the working window")
	}
	return v.Err()
}

// normalizeLegacy folds older row encodings into the tagged form: a one-time
// rule with zero capacity is a block, and a weekly rule with no weekday mask
// applies every day.
func normalizeLegacy(r *Rule) {
	if r.Kind == KindOneTime && r.MaxAppointments == 0 {
		r.Kind = KindBlocked
		if r.Reason == "" {
			r.Reason = "unavailable"
		}
	}
	if r.Kind == KindWeekly && r.Weekdays.IsEmpty() {
		r.Weekdays = calendar.AllWeekdays
	}
}

// DateStatus is the resolved state of one lawyer on one date.
type DateStatus struct {
	Date            calendar.Date       `json:"date"`
	Status          string              `json:"status"`
	SlotsRemaining  int                 `json:"slots_remaining"`
	MaxAppointments int                 `json:"max_appointments"`
	BookedCount     int                 `json:"booked_count"`
	Kind            RuleKind            `json:"kind"`
	RuleID          uuid.UUID           `json:"rule_id"`
	Reason          string              `json:"reason,omitempty"`
	StartTime       *calendar.ClockTime `json:"start_time,omitempty"`
	EndTime         *calendar.ClockTime `json:"end_time,omitempty"`
	SlotDuration    int                 `json:"slot_duration,omitempty"`
}

type DateRange struct {
	StartDate calendar.Date `json:"start_date"`
	EndDate   calendar.Date `json:"end_date"`
	Weeks     int           `json:"weeks"`
	MaxWeeks  int           `json:"max_weeks"`
	TotalDays int           `json:"total_days"`
}

type ScheduleSummary struct {
	WeeklyScheduleCount int `json:"weekly_schedule_count"`
	OneTimeCount        int `json:"one_time_count"`
	BlockedCount        int `json:"blocked_count"`
	FullyBookedCount    int `json:"fully_booked_count"`
	AvailableCount      int `json:"available_count"`
}

// AvailabilityResult is the answer to an availability query.
type AvailabilityResult struct {
	AvailableDates []calendar.Date       `json:"available_dates"`
	Detailed       []DateStatus          `json:"detailed_availability"`
	DateStatusMap  map[string]DateStatus `json:"date_status_map"`
	DateRange      DateRange             `json:"date_range"`
	Summary        ScheduleSummary       `json:"schedule_summary"`
}

// TimeSlot is one bookable increment. The day-level counters are repeated on
// every slot.
type TimeSlot struct {
	Time            string `json:"time"`
	Time24h         string `json:"time_24h"`
	Display         string `json:"display"`
	Available       bool   `json:"available"`
	BookedCount     int    `json:"booked_count"`
	MaxAppointments int    `json:"max_appointments"`
	SlotsRemaining  int    `json:"slots_remaining"`
}

type SlotList struct {
	TimeSlots       []TimeSlot    `json:"time_slots"`
	Date            calendar.Date `json:"date"`
	SlotDuration    int           `json:"slot_duration"`
	MaxAppointments int           `json:"max_appointments"`
	TotalBooked     int           `json:"total_booked"`
	SlotsRemaining  int           `json:"slots_remaining"`
	Message         string        `json:"message,omitempty"`
}

// SlotCheck is the advisory answer for one date and time. It is not a
// reservation.
type SlotCheck struct {
	Date      calendar.Date `json:"date"`
	Time      string        `json:"time"`
	Exists    bool          `json:"exists"`
	Available bool          `json:"available"`
	Message   string        `json:"message,omitempty"`
}
