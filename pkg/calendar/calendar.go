// Package calendar holds the zone-free date and wall-clock types used by the
// booking rules. A Date is a calendar day; a ClockTime is a minute of that day.
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid calendar date")
	ErrInvalidClock = errors.New("invalid time of day")
	ErrSlotDuration = errors.New("slot duration must be positive")
)

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD. Days that do not exist (2026-02-30) are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals; it panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar day in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

func (d Date) After(o Date) bool { return d.Time().After(o.Time()) }

// DaysUntil returns the number of days from d to o; negative when o is earlier.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time().Sub(d.Time()).Hours() / 24)
}

// Between reports whether d lies in [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Range returns every date in [from, to]. It returns nil when to is before from.
func Range(from, to Date) []Date {
	n := from.DaysUntil(to)
	if n < 0 {
		return nil
	}
	out := make([]Date, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, from.AddDays(i))
	}
	return out
}

// ClockTime is a wall-clock time stored as minutes after midnight.
type ClockTime int

// EndOfDay is midnight at the end of the day. It is only meaningful as the
// closing bound of a window.
const EndOfDay ClockTime = 24 * 60

// Clock builds a ClockTime from hour and minute.
func Clock(hour, minute int) ClockTime { return ClockTime(hour*60 + minute) }

// ParseClock accepts "HH:MM" and "HH:MM:SS". Seconds must be zero. "24:00"
// parses as EndOfDay.
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return EndOfDay, nil
	}
	layouts := []string{"15:04", "15:04:05"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		return Clock(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

// Valid reports whether c is a time of day, 00:00 through 23:59.
func (c ClockTime) Valid() bool { return c >= 0 && c < EndOfDay }

// ValidEnd reports whether c can close a window: 00:01 through 24:00.
func (c ClockTime) ValidEnd() bool { return c > 0 && c <= EndOfDay }

func (c ClockTime) Add(minutes int) ClockTime { return c + ClockTime(minutes) }

// String renders HH:MM.
func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// SQL renders HH:MM:SS, the form a TIME column round-trips.
func (c ClockTime) SQL() string { return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute()) }

// Kitchen renders a 12-hour time such as "9:00 AM". 24:00 renders as midnight.
func (c ClockTime) Kitchen() string {
	h := c.Hour() % 24
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, c.Minute(), suffix)
}

func (c ClockTime) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClock, string(b))
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SplitSlots walks [start, end) in steps of minutes and returns the start of
// every whole step. A trailing step that would run past end is dropped.
func SplitSlots(start, end ClockTime, minutes int) ([]ClockTime, error) {
	if minutes <= 0 {
		return nil, ErrSlotDuration
	}
	var out []ClockTime
	for cur := start; cur.Add(minutes) <= end; cur = cur.Add(minutes) {
		out = append(out, cur)
	}
	return out, nil
}

// WeekdaySet is a bitmask of weekdays; bit 0 is Sunday.
type WeekdaySet uint8

// AllWeekdays covers Sunday through Saturday.
const AllWeekdays WeekdaySet = 0x7f

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) IsEmpty() bool { return s&AllWeekdays == 0 }

// Days lists the members Sunday first.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// ParseWeekday accepts full English names and three-letter abbreviations.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if key == name || key == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, strings.ToLower(d.String()))
	}
	return json.Marshal(names)
}

func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return fmt.Errorf("weekdays must be a list of day names: %w", err)
	}
	var set WeekdaySet
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return err
		}
		set |= NewWeekdaySet(d)
	}
	*s = set
	return nil
}
