package remote

import (
	"context"
	"sort"

	"deployrota/internal/schedule"
	logx "deployrota/pkg/logx"
)

// Stored is a schedule row read back from the table. Date is zero when the
// deploy_date text could not be parsed with the configured layout.
type Stored struct {
	Date        schedule.Date `json:"date"`
	DeployDate  string        `json:"deploy_date"`
	Responsible string        `json:"responsible"`
}

// Rows converts generated entries to table rows, formatting dates with layout.
func Rows(entries []schedule.Entry, layout string) []Row {
	out := make([]Row, 0, len(entries))
	for _, e := range entries {
		out = append(out, Row{DeployDate: e.Date.Format(layout), ResponsibleName: e.Responsible})
	}
	return out
}

// Fetch reads every stored row and orders it chronologically. Read failures
// are logged and yield an empty result; t == nil means remote is disabled.
//
// The table orders deploy_date as text, which is not chronological for
// day-first layouts, so rows are re-sorted by parsed date. Unparseable rows
// keep their table order after the dated ones.
func Fetch(ctx context.Context, t Table, layout string, log logx.Logger) []Stored {
	if t == nil {
		return []Stored{}
	}
	rows, err := t.Select(ctx)
	if err != nil {
		log.Warn("fetch stored schedule failed", logx.Err(err))
		return []Stored{}
	}

	out := make([]Stored, 0, len(rows))
	bad := 0
	for _, r := range rows {
		s := Stored{DeployDate: r.DeployDate, Responsible: r.ResponsibleName}
		if d, err := schedule.ParseDateLayout(layout, r.DeployDate); err == nil {
			s.Date = d
		} else {
			bad++
		}
		out = append(out, s)
	}
	if bad > 0 {
		log.Debug("stored rows with unparseable dates", logx.Int("count", bad), logx.String("layout", layout))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Date, out[j].Date
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
	return out
}
