package bot

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"deployrota/internal/deploy"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	"deployrota/internal/storage"
	kit "deployrota/internal/transport"
	logx "deployrota/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan string
}

func newFakeSender() *fakeSender { return &fakeSender{ch: make(chan string, 32)} }

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	f.ch <- text
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

type harness struct {
	t       *testing.T
	svc     *deploy.Service
	bot     *Bot
	sender  *fakeSender
	updates chan kit.Update
}

// Thursday 2025-05-15 is the third slot after 2025-05-08.
var testNow = time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, owners []int64, names ...string) *harness {
	t.Helper()
	st := roster.NewStore(storage.NewMemory())
	if _, err := st.Save(context.Background(), names); err != nil {
		t.Fatal(err)
	}
	svc := deploy.New(deploy.Deps{
		Store:    st,
		Schedule: schedule.DefaultConfig(),
		Location: time.UTC,
		Clock:    schedule.FixedClock(testNow),
	})
	sender := newFakeSender()
	h := &harness{
		t:       t,
		svc:     svc,
		bot:     New(Config{Owners: owners, ListCount: 3}, svc, sender, logx.Nop()),
		sender:  sender,
		updates: make(chan kit.Update),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.bot.Run(ctx, h.updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) say(from int64, text string) string {
	h.t.Helper()
	h.updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 100, FromID: from, Text: text}}
	select {
	case reply := <-h.sender.ch:
		return reply
	case <-time.After(2 * time.Second):
		h.t.Fatalf("no reply to %q", text)
		return ""
	}
}

func TestTokenizeCommandLine(t *testing.T) {
	got := tokenizeCommandLine(`/edit 2 "Ana Paula" 'x y' a\ b ""`)
	want := []string{"/edit", "2", "Ana Paula", "x y", "a b", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if tokenizeCommandLine("   ") != nil {
		t.Fatal("blank input should yield nil")
	}
}

func TestParseFlags(t *testing.T) {
	pos, flags, bools := parseFlags([]string{"--from-start", "5", "--tz=UTC", "--", "--raw"})
	if !reflect.DeepEqual(pos, []string{"5", "--raw"}) {
		t.Fatalf("pos = %q", pos)
	}
	if flags["tz"] != "UTC" || !bools["from-start"] {
		t.Fatalf("flags=%v bools=%v", flags, bools)
	}
}

func TestParseIndex(t *testing.T) {
	if i, err := parseIndex("3"); err != nil || i != 2 {
		t.Fatalf("parseIndex(3) = %d, %v", i, err)
	}
	for _, raw := range []string{"0", "-1", "x", ""} {
		if _, err := parseIndex(raw); err == nil {
			t.Fatalf("parseIndex(%q) accepted", raw)
		}
	}
}

func TestScheduleCommand(t *testing.T) {
	h := newHarness(t, nil, "Ana", "Bia")

	got := h.say(1, "/schedule")
	want := "Upcoming deploys\n15/05/2025 (Thu) - Ana\n19/05/2025 (Mon) - Bia\n22/05/2025 (Thu) - Ana"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	got = h.say(1, "/schedule 2 --from-start")
	want = "Deploy schedule\n08/05/2025 (Thu) - Ana\n12/05/2025 (Mon) - Bia"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	if got := h.say(1, "/schedule 0"); !strings.Contains(got, "between 1 and") {
		t.Fatalf("got %q", got)
	}
}

func TestTodayCommand(t *testing.T) {
	h := newHarness(t, nil, "Ana", "Bia")
	if got := h.say(1, "/today"); got != "Deploy today (15/05/2025): Ana" {
		t.Fatalf("got %q", got)
	}
}

func TestDraftSaveFlow(t *testing.T) {
	h := newHarness(t, nil, "Ana", "Bia")
	ctx := context.Background()

	if got := h.say(1, `/add "Caio Lima"`); !strings.Contains(got, "3. Caio Lima") {
		t.Fatalf("add reply %q", got)
	}
	h.say(1, "/move 3 1")
	if got := h.svc.Roster(ctx); !reflect.DeepEqual(got, roster.Roster{"Ana", "Bia"}) {
		t.Fatalf("draft leaked into saved roster: %v", got)
	}
	if got := h.say(1, "/roster"); !strings.Contains(got, "Draft (unsaved)\n1. Caio Lima") {
		t.Fatalf("roster reply %q", got)
	}

	if got := h.say(1, "/save"); !strings.HasPrefix(got, "Saved 3 name(s).") {
		t.Fatalf("save reply %q", got)
	}
	want := roster.Roster{"Caio Lima", "Ana", "Bia"}
	if got := h.svc.Roster(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("saved = %v, want %v", got, want)
	}
	if got := h.say(1, "/save"); !strings.HasPrefix(got, "Nothing to save") {
		t.Fatalf("second save %q", got)
	}
}

func TestDraftRejectsInvalidEdits(t *testing.T) {
	h := newHarness(t, nil, "Ana", "Bia")

	if got := h.say(1, "/add Ana"); got != "that name is already in the list" {
		t.Fatalf("got %q", got)
	}
	if got := h.say(1, "/add"); got != "name cannot be empty" {
		t.Fatalf("got %q", got)
	}
	if got := h.say(1, "/remove 5"); got != "position 5 does not exist (the list has 2)" {
		t.Fatalf("got %q", got)
	}
	if got := h.say(1, "/edit 2 Ana"); got != "that name is already in the list" {
		t.Fatalf("got %q", got)
	}
	if got := h.say(1, "/cancel"); got != "No draft to discard." {
		t.Fatalf("got %q", got)
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	h := newHarness(t, nil, "Ana", "Bia")
	h.say(1, "/remove 1")
	if got := h.say(1, "/cancel"); got != "Draft discarded." {
		t.Fatalf("got %q", got)
	}
	if got := h.svc.Roster(context.Background()); !reflect.DeepEqual(got, roster.Roster{"Ana", "Bia"}) {
		t.Fatalf("roster = %v", got)
	}
}

func TestOwnerOnlyCommands(t *testing.T) {
	h := newHarness(t, []int64{42}, "Ana")

	if got := h.say(7, "/add Bia"); got != "unauthorized" {
		t.Fatalf("got %q", got)
	}
	if got := h.say(7, "/today"); !strings.HasPrefix(got, "Deploy today") {
		t.Fatalf("read command blocked: %q", got)
	}
	if got := h.say(42, "/add Bia"); !strings.Contains(got, "2. Bia") {
		t.Fatalf("owner add %q", got)
	}
}

func TestUnknownCommandAndHelp(t *testing.T) {
	h := newHarness(t, nil, "Ana")
	if got := h.say(1, "/nope"); !strings.HasPrefix(got, "unknown command") {
		t.Fatalf("got %q", got)
	}
	help := h.say(1, "/help")
	for _, c := range []string{"/schedule", "/save", "/cancel"} {
		if !strings.Contains(help, c) {
			t.Fatalf("help missing %s: %q", c, help)
		}
	}
	if got := h.say(1, "/help@deploy_bot rm"); !strings.HasPrefix(got, "/remove:") {
		t.Fatalf("alias help %q", got)
	}
}

func TestDraftsExpire(t *testing.T) {
	now := time.Unix(0, 0)
	d := newDrafts(time.Minute, func() time.Time { return now })
	d.put(1, roster.Roster{"Ana"})
	d.put(2, roster.Roster{"Bia"})

	now = now.Add(30 * time.Second)
	if _, ok := d.get(1); !ok {
		t.Fatal("draft expired early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := d.get(1); ok {
		t.Fatal("draft outlived its ttl")
	}
	if n := d.sweep(); n != 1 {
		t.Fatalf("sweep removed %d", n)
	}
}
