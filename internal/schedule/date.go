package schedule

import (
	"fmt"
	"strings"
	"time"
)

// ISOLayout is the canonical wire format for Date (JSON, config, query params).
const ISOLayout = "2006-01-02"

// DisplayLayout is the day/month/year layout used for rendering and for the
// remote deploy_date column.
const DisplayLayout = "02/01/2006"

// Date is a calendar date without time of day or location.
//
// Arithmetic goes through UTC midnight, which has no DST transitions, so
// AddDays(1) always lands on the next calendar day.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the normalized date (e.g. Feb 30 becomes Mar 1/2).
func NewDate(year int, month time.Month, d int) Date {
	return DateOf(time.Date(year, month, d, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

func (d Date) utc() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

func (d Date) Year() int             { return d.year }
func (d Date) Month() time.Month     { return d.month }
func (d Date) Day() int              { return d.day }
func (d Date) Weekday() time.Weekday { return d.utc().Weekday() }

// AddDays moves the date by n calendar days (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.dayNumber() - d.dayNumber())
}

// dayNumber counts days since 1970-01-01 in the proleptic Gregorian calendar.
func (d Date) dayNumber() int64 {
	y := int64(d.year)
	m := int64(d.month)
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + int64(d.day) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func (d Date) Before(o Date) bool { return d.dayNumber() < o.dayNumber() }
func (d Date) After(o Date) bool  { return d.dayNumber() > o.dayNumber() }
func (d Date) Equal(o Date) bool  { return d == o }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Before(o):
		return -1
	case d.After(o):
		return 1
	default:
		return 0
	}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
}

// Format renders the date with a Go time layout. Empty layout means DisplayLayout.
func (d Date) Format(layout string) string {
	if strings.TrimSpace(layout) == "" {
		layout = DisplayLayout
	}
	return d.utc().Format(layout)
}

func (d Date) String() string { return d.Format(ISOLayout) }

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	return ParseDateLayout(ISOLayout, s)
}

// ParseDateLayout parses s with a Go time layout and keeps only the date part.
func ParseDateLayout(layout, s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("date required")
	}
	if strings.TrimSpace(layout) == "" {
		layout = ISOLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want %s): %w", s, layout, err)
	}
	return DateOf(t), nil
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ---- Clock ----

// Clock is the only source of "now" for callers that need today's date.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful in tests.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Today returns the current calendar date in loc (nil means time.Local).
func Today(c Clock, loc *time.Location) Date {
	if c == nil {
		c = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return DateOf(c.Now().In(loc))
}
