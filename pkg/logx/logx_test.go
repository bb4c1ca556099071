package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kit "deployrota/internal/transport"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "roster"))
	log.Info("roster saved", Int("names", 4), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if m["comp"] != "roster" || m["message"] != "roster saved" || m["err"] != "boom" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["names"].(float64) != 4 {
		t.Fatalf("names = %v", m["names"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("caller missing: %v", m)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %s", buf.String())
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	log.Error("nothing happens")
	Nop().With(String("a", "b")).Info("still nothing")
}

func TestValidLevel(t *testing.T) {
	for _, ok := range []string{"", "debug", "INFO", "warning", "Error", "trace"} {
		if !ValidLevel(ok) {
			t.Fatalf("ValidLevel(%q) = false", ok)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}

func TestFormatTelegramLine(t *testing.T) {
	line := `{"level":"warn","time":"x","message":"mirror failed","run":"r1","err":"timeout"}`
	got := formatTelegramLine([]byte(line))
	want := "[WARN] mirror failed\n- err=timeout\n- run=r1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatTelegramLine([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("non-JSON line = %q", got)
	}
	long := strings.Repeat("x", 5000)
	if got := truncate(long, telegramMaxMessage); len(got) != telegramMaxMessage || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate len = %d", len(got))
	}
}

type captureSender struct {
	mu   sync.Mutex
	msgs []string
	to   []kit.ChatTarget
}

func (c *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	c.to = append(c.to, to)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestServiceTelegramSink(t *testing.T) {
	snd := &captureSender{}
	svc, log := New(Config{Level: "debug", Console: false}, snd)
	defer svc.Close()

	svc.SetTelegramTarget(-100123, 7)
	svc.Apply(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			MinLevel:   "warn",
			RatePerSec: 10,
		},
	})

	log.Info("not forwarded")
	log.Warn("forwarded", String("k", "v"))

	deadline := time.Now().Add(2 * time.Second)
	for snd.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	snd.mu.Lock()
	defer snd.mu.Unlock()
	if len(snd.msgs) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d: %v", len(snd.msgs), snd.msgs)
	}
	if !strings.HasPrefix(snd.msgs[0], "[WARN] forwarded") {
		t.Fatalf("unexpected message: %q", snd.msgs[0])
	}
	if snd.to[0].ChatID != -100123 || snd.to[0].ThreadID != 7 {
		t.Fatalf("unexpected target: %+v", snd.to[0])
	}
}
