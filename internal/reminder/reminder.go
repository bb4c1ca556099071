// Package reminder posts "who deploys today" to a chat on a cron schedule.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deployrota/internal/eventbus"
	"deployrota/internal/schedule"
	kit "deployrota/internal/transport"
	logx "deployrota/pkg/logx"
)

// SecondOptional allows both 5-field and 6-field (with seconds) specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates a cron spec the way the service will use it.
func ParseSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("reminder.cron: empty spec")
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("reminder.cron: %w", err)
	}
	return nil
}

type Config struct {
	Enabled  bool
	Spec     string
	Target   kit.ChatTarget
	Location *time.Location
	Timeout  time.Duration // per send; default 30s
}

// Source answers which entry falls on today.
type Source interface {
	TodayEntry(ctx context.Context) (schedule.Entry, bool, error)
	FormatDate(d schedule.Date) string
}

type Service struct {
	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc

	src    Source
	sender kit.Sender
	bus    eventbus.Bus
	log    logx.Logger
}

func New(cfg Config, src Source, sender kit.Sender, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, src: src, sender: sender, bus: bus, log: log.With(logx.String("comp", "reminder"))}
}

// Message is the text sent for e.
func Message(e schedule.Entry, date string) string {
	return fmt.Sprintf("Deploy today (%s): %s", date, e.Responsible)
}

// Start registers the cron job. Disabled config is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cfg := s.cfg
	if !cfg.Enabled {
		s.log.Debug("reminder disabled")
		return nil
	}
	if s.sender == nil {
		return errors.New("reminder: no sender configured")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	ctx := s.runCtx
	if _, err := c.AddFunc(cfg.Spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("reminder.cron: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("reminder started", logx.String("cron", cfg.Spec), logx.String("tz", loc.String()), logx.Time("next", s.nextLocked()))
	return nil
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

// Stop waits for a running job to finish, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.mu.Unlock()
	if c == nil {
		if cancel != nil {
			cancel()
		}
		return
	}
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("reminder stopped")
}

// Apply swaps the config; a running cron is restarted with it.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.runCtx == nil {
		return nil
	}
	s.stopLocked()
	return s.startLocked()
}

// Next returns the next scheduled run (zero when not running).
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	for _, e := range s.c.Entries() {
		return e.Next
	}
	return time.Time{}
}

func (s *Service) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("reminder panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Warn("reminder failed", logx.Err(err))
	}
}

// RunOnce sends today's reminder if today is a slot. It reports whether a
// message was sent.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	if s.sender == nil {
		return false, errors.New("reminder: no sender configured")
	}

	e, ok, err := s.src.TodayEntry(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("no deploy today")
		return false, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	date := s.src.FormatDate(e.Date)
	data := eventbus.ReminderData{Date: date, Responsible: e.Responsible, ChatID: cfg.Target.ChatID}
	if _, err := s.sender.SendText(sctx, cfg.Target, Message(e, date), &kit.SendOptions{DisablePreview: true}); err != nil {
		data.Err = err.Error()
		s.publish(eventbus.ReminderFailed, data)
		return false, fmt.Errorf("send reminder: %w", err)
	}
	s.log.Info("reminder sent", logx.String("date", date), logx.String("responsible", e.Responsible))
	s.publish(eventbus.ReminderSent, data)
	return true, nil
}

func (s *Service) publish(typ string, data eventbus.ReminderData) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
