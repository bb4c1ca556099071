package schedule

import (
	"time"
)

// Entry is one deploy slot and the person responsible for it.
type Entry struct {
	Date        Date   `json:"date"`
	Responsible string `json:"responsible"`
}

// Generate walks forward from start one calendar day at a time and emits an
// entry for every day whose weekday is in weekdays, assigning names
// round-robin: the k-th emitted entry gets roster[k % len(roster)].
//
// count == 0 always yields an empty result. An empty roster with count > 0
// fails with *EmptyRosterError; an empty weekday set with count > 0 fails
// with ErrNoWeekdays.
func Generate(roster []string, start Date, count int, weekdays []time.Weekday) ([]Entry, error) {
	return generate(roster, start, count, newWeekdaySet(weekdays), 0)
}

func generate(roster []string, start Date, count int, set weekdaySet, offset int) ([]Entry, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}
	out := make([]Entry, 0, count)
	if count == 0 {
		return out, nil
	}
	if len(roster) == 0 {
		return nil, &EmptyRosterError{Count: count}
	}
	if set == 0 {
		return nil, ErrNoWeekdays
	}

	cursor := start
	i := offset
	for len(out) < count {
		if set.has(cursor.Weekday()) {
			out = append(out, Entry{Date: cursor, Responsible: roster[i%len(roster)]})
			i++
		}
		cursor = cursor.AddDays(1)
	}
	return out, nil
}

// SlotIndex returns how many slot dates fall in [start, d). Dates on or
// before start yield 0. It runs in constant time regardless of distance.
func SlotIndex(start, d Date, weekdays []time.Weekday) int {
	return slotIndex(start, d, newWeekdaySet(weekdays))
}

func slotIndex(start, d Date, set weekdaySet) int {
	n := start.DaysUntil(d)
	if n <= 0 {
		return 0
	}
	weeks, rem := n/7, n%7
	idx := weeks * set.size()
	wd := start.Weekday()
	for k := 0; k < rem; k++ {
		if set.has(time.Weekday((int(wd) + k) % 7)) {
			idx++
		}
	}
	return idx
}

// Generate produces count entries starting at c.Start.
func (c Config) Generate(roster []string, count int) ([]Entry, error) {
	return generate(roster, c.Start, count, newWeekdaySet(c.Weekdays), 0)
}

// From produces count entries on or after from without resetting the
// rotation: the phase is still anchored at c.Start, so the entry for any
// date is the same one Generate would produce for it.
func (c Config) From(roster []string, from Date, count int) ([]Entry, error) {
	set := newWeekdaySet(c.Weekdays)
	if from.Before(c.Start) {
		from = c.Start
	}
	return generate(roster, from, count, set, slotIndex(c.Start, from, set))
}

// At returns the entry for date d. ok is false when d is before c.Start or
// is not a deploy weekday.
func (c Config) At(roster []string, d Date) (Entry, bool, error) {
	set := newWeekdaySet(c.Weekdays)
	if d.Before(c.Start) || !set.has(d.Weekday()) {
		return Entry{}, false, nil
	}
	if len(roster) == 0 {
		return Entry{}, false, &EmptyRosterError{Count: 1}
	}
	idx := slotIndex(c.Start, d, set)
	return Entry{Date: d, Responsible: roster[idx%len(roster)]}, true, nil
}

// Next returns the first entry on or after from.
func (c Config) Next(roster []string, from Date) (Entry, error) {
	es, err := c.From(roster, from, 1)
	if err != nil {
		return Entry{}, err
	}
	return es[0], nil
}

// IsSlot reports whether d is a deploy day under c.
func (c Config) IsSlot(d Date) bool {
	return !d.Before(c.Start) && newWeekdaySet(c.Weekdays).has(d.Weekday())
}
