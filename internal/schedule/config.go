package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the rotation parameters: where the rotation starts, which
// weekdays are deploy days, and how dates are displayed.
type Config struct {
	Start    Date
	Weekdays []time.Weekday
	Layout   string // display/remote layout; empty means DisplayLayout
}

// DefaultStart is the first day of the rotation when none is configured.
var DefaultStart = NewDate(2025, time.May, 8)

// DefaultWeekdays are the deploy days: Monday and Thursday.
var DefaultWeekdays = []time.Weekday{time.Monday, time.Thursday}

func DefaultConfig() Config {
	return Config{
		Start:    DefaultStart,
		Weekdays: append([]time.Weekday(nil), DefaultWeekdays...),
		Layout:   DisplayLayout,
	}
}

// Validate rejects configs that would make generation loop forever or
// start from an undefined date.
func (c Config) Validate() error {
	if c.Start.IsZero() {
		return fmt.Errorf("schedule.start_date: required")
	}
	if len(c.Weekdays) == 0 {
		return ErrNoWeekdays
	}
	for _, wd := range c.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("schedule.weekdays: invalid weekday %d", int(wd))
		}
	}
	return nil
}

func (c Config) layout() string {
	if strings.TrimSpace(c.Layout) == "" {
		return DisplayLayout
	}
	return c.Layout
}

// FormatDate renders d with the configured display layout.
func (c Config) FormatDate(d Date) string { return d.Format(c.layout()) }

// weekdaySet is a bitmask over time.Weekday (bit n = weekday n).
type weekdaySet uint8

func newWeekdaySet(wds []time.Weekday) weekdaySet {
	var s weekdaySet
	for _, wd := range wds {
		if wd >= time.Sunday && wd <= time.Saturday {
			s |= 1 << uint(wd)
		}
	}
	return s
}

func (s weekdaySet) has(wd time.Weekday) bool { return s&(1<<uint(wd)) != 0 }

func (s weekdaySet) size() int {
	n := 0
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if s.has(wd) {
			n++
		}
	}
	return n
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday, "dom": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "segunda": time.Monday, "seg": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "terca": time.Tuesday, "terça": time.Tuesday, "ter": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "quarta": time.Wednesday, "qua": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "quinta": time.Thursday, "qui": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "sexta": time.Friday, "sex": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday, "sab": time.Saturday,
}

// ParseWeekday accepts English or Portuguese names (full or short) and the
// numbers 0..6 (0 = Sunday).
func ParseWeekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("weekday required")
	}
	if wd, ok := weekdayNames[s]; ok {
		return wd, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q (use 0..6, 0 = sunday)", raw)
		}
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("invalid weekday %q", raw)
}

// ParseWeekdays parses and de-duplicates a weekday list, sorted Sunday first.
func ParseWeekdays(raw []string) ([]time.Weekday, error) {
	var set weekdaySet
	for _, r := range raw {
		wd, err := ParseWeekday(r)
		if err != nil {
			return nil, err
		}
		set |= 1 << uint(wd)
	}
	out := make([]time.Weekday, 0, set.size())
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if set.has(wd) {
			out = append(out, wd)
		}
	}
	return out, nil
}
