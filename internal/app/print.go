package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"deployrota/internal/config"
	"deployrota/internal/schedule"
	logx "deployrota/pkg/logx"
)

type PrintOptions struct {
	Count int // 0 = schedule.default_count
	// FromStart lists from the configured start date instead of today.
	FromStart bool
	// Stored prints the rows in the remote table instead of generating.
	Stored bool
}

// Print writes the schedule to w without starting any surface. Warnings go
// to log.
func Print(ctx context.Context, cfgPath string, opts PrintOptions, w io.Writer, log logx.Logger) error {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a, err := build(cfg, log, nil, nil)
	if err != nil {
		return err
	}
	defer a.closeStores()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if opts.Stored {
		for _, r := range a.svc.Stored(ctx) {
			fmt.Fprintf(tw, "%s\t%s\n", r.DeployDate, r.Responsible)
		}
		return tw.Flush()
	}

	count := opts.Count
	if count <= 0 {
		count = cfg.ListCount()
	}
	var entries []schedule.Entry
	if opts.FromStart {
		entries, err = a.svc.Schedule(ctx, count)
	} else {
		entries, err = a.svc.Upcoming(ctx, count)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.svc.FormatDate(e.Date), e.Date.Weekday().String()[:3], e.Responsible)
	}
	return tw.Flush()
}
