// Package deploy composes the roster store, the schedule generator and the
// remote read path into the operations the bot and HTTP API expose.
package deploy

import (
	"context"
	"sync"
	"time"

	"deployrota/internal/eventbus"
	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	logx "deployrota/pkg/logx"
)

type Deps struct {
	Store    *roster.Store
	Schedule schedule.Config
	Location *time.Location // "today" is computed here; nil = time.Local
	Clock    schedule.Clock
	Remote   remote.Table // nil when remote is disabled
	// RemoteTimeout bounds each read of the remote table; 0 = none.
	RemoteTimeout time.Duration
	Bus           eventbus.Bus
	Log           logx.Logger
}

// Service serializes roster mutations: each one loads the current roster,
// applies a pure edit and saves, all under one lock.
type Service struct {
	mu    sync.Mutex
	store *roster.Store
	sched schedule.Config
	loc   *time.Location
	clock schedule.Clock
	table remote.Table
	tmo   time.Duration
	bus   eventbus.Bus
	log   logx.Logger
}

func New(d Deps) *Service {
	s := &Service{
		store: d.Store,
		sched: d.Schedule,
		loc:   d.Location,
		clock: d.Clock,
		table: d.Remote,
		tmo:   d.RemoteTimeout,
		bus:   d.Bus,
		log:   d.Log,
	}
	if s.store == nil {
		s.store = roster.NewStore(nil)
	}
	if s.sched.Start.IsZero() {
		s.sched = schedule.DefaultConfig()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = schedule.SystemClock{}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "deploy"))
	return s
}

func (s *Service) ScheduleConfig() schedule.Config { return s.sched }

// FormatDate renders d with the configured display layout.
func (s *Service) FormatDate(d schedule.Date) string { return s.sched.FormatDate(d) }

func (s *Service) Today() schedule.Date { return schedule.Today(s.clock, s.loc) }

func (s *Service) Roster(ctx context.Context) roster.Roster {
	return s.store.Load(ctx)
}

// Schedule returns the first count entries from the configured start date.
func (s *Service) Schedule(ctx context.Context, count int) ([]schedule.Entry, error) {
	return s.sched.Generate(s.store.Load(ctx), count)
}

// ScheduleFrom returns count entries on or after from, keeping the rotation
// anchored at the start date.
func (s *Service) ScheduleFrom(ctx context.Context, from schedule.Date, count int) ([]schedule.Entry, error) {
	return s.sched.From(s.store.Load(ctx), from, count)
}

// Upcoming is ScheduleFrom today.
func (s *Service) Upcoming(ctx context.Context, count int) ([]schedule.Entry, error) {
	return s.ScheduleFrom(ctx, s.Today(), count)
}

// TodayEntry returns today's entry; ok is false when today is not a slot.
func (s *Service) TodayEntry(ctx context.Context) (schedule.Entry, bool, error) {
	return s.sched.At(s.store.Load(ctx), s.Today())
}

// Next returns the first slot on or after today.
func (s *Service) Next(ctx context.Context) (schedule.Entry, error) {
	return s.sched.Next(s.store.Load(ctx), s.Today())
}

// Stored returns the rows mirrored to the remote table (fetch mode).
func (s *Service) Stored(ctx context.Context) []remote.Stored {
	if s.tmo > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tmo)
		defer cancel()
	}
	return remote.Fetch(ctx, s.table, s.sched.Layout, s.log)
}

func (s *Service) SaveRoster(ctx context.Context, r roster.Roster) (roster.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, r)
}

func (s *Service) AddName(ctx context.Context, name string) (roster.Roster, error) {
	return s.mutate(ctx, func(cur roster.Roster) (roster.Roster, error) {
		if err := roster.ValidateName(cur, name); err != nil {
			return cur, err
		}
		return roster.AddName(cur, name), nil
	})
}

func (s *Service) RemoveName(ctx context.Context, index int) (roster.Roster, error) {
	return s.mutate(ctx, func(cur roster.Roster) (roster.Roster, error) {
		return roster.RemoveName(cur, index)
	})
}

func (s *Service) EditName(ctx context.Context, index int, name string) (roster.Roster, error) {
	return s.mutate(ctx, func(cur roster.Roster) (roster.Roster, error) {
		return roster.EditName(cur, index, name)
	})
}

func (s *Service) MoveName(ctx context.Context, from, to int) (roster.Roster, error) {
	return s.mutate(ctx, func(cur roster.Roster) (roster.Roster, error) {
		return roster.MoveName(cur, from, to)
	})
}

func (s *Service) mutate(ctx context.Context, edit func(roster.Roster) (roster.Roster, error)) (roster.Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.store.Load(ctx)
	next, err := edit(cur)
	if err != nil {
		return cur, err
	}
	return s.saveLocked(ctx, next)
}

func (s *Service) saveLocked(ctx context.Context, r roster.Roster) (roster.Roster, error) {
	out, err := s.store.Save(ctx, r)
	if err != nil {
		s.log.Error("roster save failed", logx.Err(err))
		return nil, err
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.RosterSaved, Data: eventbus.RosterSavedData{Names: out.Clone()}})
	}
	return out, nil
}
