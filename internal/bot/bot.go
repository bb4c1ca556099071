package bot

import (
	"context"
	"sync/atomic"
	"time"

	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/schedule"
	kit "deployrota/internal/transport"
	logx "deployrota/pkg/logx"
)

// Service is the part of deploy.Service the bot uses.
type Service interface {
	Roster(ctx context.Context) roster.Roster
	SaveRoster(ctx context.Context, r roster.Roster) (roster.Roster, error)
	Schedule(ctx context.Context, count int) ([]schedule.Entry, error)
	Upcoming(ctx context.Context, count int) ([]schedule.Entry, error)
	TodayEntry(ctx context.Context) (schedule.Entry, bool, error)
	Next(ctx context.Context) (schedule.Entry, error)
	Stored(ctx context.Context) []remote.Stored
	FormatDate(d schedule.Date) string
}

type Config struct {
	Owners []int64
	// ListCount is the default number of entries /schedule prints.
	ListCount      int
	DraftTTL       time.Duration
	CommandTimeout time.Duration
	Now            func() time.Time
}

const (
	defaultListCount      = 10
	maxListCount          = 100
	defaultCommandTimeout = 30 * time.Second
)

type Bot struct {
	svc       Service
	router    *Router
	drafts    *drafts
	listCount atomic.Int64
	log       logx.Logger
}

func New(cfg Config, svc Service, sender kit.Sender, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		svc:    svc,
		router: NewRouter(sender, cfg.Owners, log),
		drafts: newDrafts(cfg.DraftTTL, cfg.Now),
		log:    log.With(logx.String("comp", "bot")),
	}
	b.SetListCount(cfg.ListCount)
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	b.router.Register(b.commands(timeout)...)
	return b
}

func (b *Bot) Router() *Router { return b.router }

func (b *Bot) MenuCommands() []kit.BotCommand { return b.router.MenuCommands() }

// Apply updates the settings that can change without a restart.
func (b *Bot) Apply(owners []int64, listCount int) {
	b.router.SetOwners(owners)
	b.SetListCount(listCount)
}

func (b *Bot) SetListCount(n int) {
	if n <= 0 {
		n = defaultListCount
	}
	if n > maxListCount {
		n = maxListCount
	}
	b.listCount.Store(int64(n))
}

// Run dispatches updates until ctx is done and expires stale drafts.
func (b *Bot) Run(ctx context.Context, updates <-chan kit.Update) error {
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := b.drafts.sweep(); n > 0 {
					b.log.Debug("expired drafts removed", logx.Int("count", n))
				}
			}
		}
	}()
	return b.router.Run(ctx, updates)
}
