// Package schedule expands a roster into deploy slots.
//
// Slots are calendar dates whose weekday is in a configured set (Monday and
// Thursday by default). Names are assigned round-robin over the roster in
// the order the slots occur, starting at Config.Start.
//
// Everything here is pure:
//   - no current-time dependency (callers pass a Clock or a Date)
//   - no time-of-day (Date is year/month/day only, so DST cannot skip a day)
//   - same inputs always produce the same entries
package schedule
