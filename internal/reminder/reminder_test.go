package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deployrota/internal/eventbus"
	"deployrota/internal/schedule"
	kit "deployrota/internal/transport"
	logx "deployrota/pkg/logx"
)

type fakeSource struct {
	entry schedule.Entry
	ok    bool
	err   error
}

func (f fakeSource) TodayEntry(context.Context) (schedule.Entry, bool, error) {
	return f.entry, f.ok, f.err
}

func (fakeSource) FormatDate(d schedule.Date) string { return d.Format(schedule.DisplayLayout) }

type captureSender struct {
	mu   sync.Mutex
	msgs []string
	to   []kit.ChatTarget
	err  error
}

func (c *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return kit.MessageRef{}, c.err
	}
	c.msgs = append(c.msgs, text)
	c.to = append(c.to, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.msgs)}, nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

var slot = schedule.Entry{Date: schedule.NewDate(2025, time.May, 12), Responsible: "Bia"}

func TestRunOnceSendsOnSlotDays(t *testing.T) {
	snd := &captureSender{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(2, eventbus.ReminderSent)
	defer unsub()

	target := kit.ChatTarget{ChatID: -100123, ThreadID: 3}
	s := New(Config{Enabled: true, Spec: "0 9 * * 1,4", Target: target}, fakeSource{entry: slot, ok: true}, snd, bus, logx.Nop())
	sent, err := s.RunOnce(context.Background())
	if err != nil || !sent {
		t.Fatalf("sent=%v err=%v", sent, err)
	}
	if snd.msgs[0] != "Deploy today (12/05/2025): Bia" {
		t.Fatalf("message = %q", snd.msgs[0])
	}
	if snd.to[0] != target {
		t.Fatalf("target = %+v", snd.to[0])
	}
	if len(events) != 1 {
		t.Fatal("no reminder.sent event")
	}
}

func TestRunOnceSkipsAndFails(t *testing.T) {
	snd := &captureSender{}
	s := New(Config{Enabled: true}, fakeSource{ok: false}, snd, nil, logx.Nop())
	if sent, err := s.RunOnce(context.Background()); sent || err != nil {
		t.Fatalf("non-slot day: sent=%v err=%v", sent, err)
	}

	s = New(Config{Enabled: true}, fakeSource{err: schedule.ErrEmptyRoster}, snd, nil, logx.Nop())
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, schedule.ErrEmptyRoster) {
		t.Fatalf("empty roster err = %v", err)
	}

	failing := &captureSender{err: errors.New("chat not found")}
	s = New(Config{Enabled: true}, fakeSource{entry: slot, ok: true}, failing, nil, logx.Nop())
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("send error swallowed")
	}
}

func TestParseSpec(t *testing.T) {
	for _, ok := range []string{"0 9 * * 1,4", "30 0 9 * * mon,thu", "@daily"} {
		if err := ParseSpec(ok); err != nil {
			t.Errorf("ParseSpec(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "every monday", "61 * * * *"} {
		if err := ParseSpec(bad); err == nil {
			t.Errorf("ParseSpec(%q) accepted", bad)
		}
	}
}

func TestCronFiresAndApplyDisables(t *testing.T) {
	snd := &captureSender{}
	s := New(Config{Enabled: true, Spec: "* * * * * *", Location: time.UTC}, fakeSource{entry: slot, ok: true}, snd, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Next().IsZero() {
		t.Fatal("next run unknown")
	}

	deadline := time.Now().Add(3 * time.Second)
	for snd.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if snd.count() == 0 {
		t.Fatal("cron never fired")
	}

	if err := s.Apply(Config{Enabled: false}); err != nil {
		t.Fatal(err)
	}
	if !s.Next().IsZero() {
		t.Fatal("disabled reminder still scheduled")
	}
	s.Stop(context.Background())
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(Config{Enabled: true, Spec: "nope"}, fakeSource{}, &captureSender{}, nil, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("bad spec accepted")
	}
}
