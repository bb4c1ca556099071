// Package app wires configuration, storage, the deploy service and its
// surfaces (Telegram bot, reminder, HTTP API) and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"deployrota/internal/bot"
	"deployrota/internal/config"
	"deployrota/internal/deploy"
	"deployrota/internal/eventbus"
	"deployrota/internal/httpapi"
	"deployrota/internal/mirror"
	"deployrota/internal/reminder"
	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/runtime/supervisor"
	"deployrota/internal/storage"
	kit "deployrota/internal/transport"
	"deployrota/internal/transport/telegram"
	logx "deployrota/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	table remote.Table // nil when remote is disabled

	// mirrorSup owns mirror runs; they outlive the app context so a save
	// made just before shutdown still reaches the table.
	mirrorSup *supervisor.Supervisor
	mirror    *mirror.Mirror
	svc       *deploy.Service

	adapter  *telegram.Adapter // nil when telegram is disabled
	bot      *bot.Bot
	reminder *reminder.Service
	http     *httpapi.Server // nil when http is disabled

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	var (
		ad     *telegram.Adapter
		sender kit.Sender
	)
	if cfg.Telegram.Enabled {
		pollTimeout, err := cfg.PollTimeout()
		if err != nil {
			return nil, err
		}
		ad, err = telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
		}, logx.NewConsole("INFO"))
		if err != nil {
			return nil, err
		}
		sender = ad
	}

	logs, log, err := newLogging(cfg, sender)
	if err != nil {
		return nil, err
	}
	log = log.With(logx.String("comp", "app"))

	a, err := build(cfg, log, ad, sender)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	a.cfgm = cfgm
	a.logs = logs
	return a, nil
}

// newLogging starts logging with the Telegram sink off, sets its target,
// then applies the final config so enabling it does not warn about a
// missing target.
func newLogging(cfg *config.Config, sender kit.Sender) (*logx.Service, logx.Logger, error) {
	lc := cfg.LoggerSettings()
	boot := lc
	boot.Telegram.Enabled = false
	logs, log := logx.New(boot, sender)

	chatID, threadID, ok, err := cfg.GroupLogTarget()
	if err != nil {
		_ = logs.Close()
		return nil, logx.Logger{}, err
	}
	if ok {
		if threadID == 0 {
			threadID = cfg.Logging.Telegram.ThreadID
		}
		logs.SetTelegramTarget(chatID, threadID)
	}
	logs.Apply(lc)
	return logs, log, nil
}

// build assembles everything below logging. ad and sender are nil when
// telegram is disabled.
func build(cfg *config.Config, log logx.Logger, ad *telegram.Adapter, sender kit.Sender) (*App, error) {
	sched, loc, err := cfg.ScheduleSettings()
	if err != nil {
		return nil, err
	}

	sc, err := cfg.StorageSettings()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver))

	rc, err := cfg.RemoteSettings()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var table remote.Table
	switch t, err := remote.Open(rc, log.With(logx.String("comp", "remote"))); {
	case errors.Is(err, remote.ErrDisabled):
		log.Info("remote mirror disabled")
	case err != nil:
		_ = store.Close()
		return nil, err
	default:
		table = t
		log.Info("remote mirror enabled", logx.String("driver", rc.Driver))
	}

	bus := eventbus.New()
	mirrorSup := supervisor.New(context.Background(), supervisor.WithLogger(log.With(logx.String("comp", "mirror"))))
	mir := mirror.New(mirror.Config{
		Schedule: sched,
		Count:    cfg.Remote.MirrorCount,
		Timeout:  rc.Timeout,
	}, table, mirrorSup, bus, log)

	opts := []roster.Option{
		roster.WithKey(cfg.Roster.Key),
		roster.WithDefaults(cfg.Roster.Defaults),
		roster.WithLogger(log.With(logx.String("comp", "roster"))),
	}
	if table != nil {
		opts = append(opts, roster.WithMirror(mir))
	}
	svc := deploy.New(deploy.Deps{
		Store:    roster.NewStore(store, opts...),
		Schedule: sched,
		Location: loc,
		Remote:   table,
		Bus:      bus,
		// Same bound as the mirror's upserts.
		RemoteTimeout: rc.Timeout,
		Log:           log,
	})

	a := &App{
		log:       log,
		bus:       bus,
		store:     store,
		table:     table,
		mirrorSup: mirrorSup,
		mirror:    mir,
		svc:       svc,
		adapter:   ad,
		updates:   make(chan kit.Update, 256),
	}

	if ad != nil {
		a.bot = bot.New(bot.Config{
			Owners:    cfg.Telegram.OwnerUserIDs,
			ListCount: cfg.ListCount(),
		}, svc, ad, log)
	}
	a.reminder = reminder.New(reminderConfig(cfg, loc), svc, sender, bus, log)

	if cfg.HTTP.Enabled {
		hs, err := cfg.HTTPSettings()
		if err != nil {
			a.closeStores()
			return nil, err
		}
		a.http = httpapi.New(httpapi.Config{
			Addr:            hs.Addr,
			ReadTimeout:     hs.ReadTimeout,
			WriteTimeout:    hs.WriteTimeout,
			ShutdownTimeout: hs.ShutdownTimeout,
			ListCount:       cfg.ListCount(),
		}, svc, log)
	}
	return a, nil
}

func reminderConfig(cfg *config.Config, loc *time.Location) reminder.Config {
	return reminder.Config{
		Enabled:  cfg.Reminder.Enabled,
		Spec:     cfg.ReminderSpec(),
		Target:   kit.ChatTarget{ChatID: cfg.Reminder.ChatID, ThreadID: cfg.Reminder.ThreadID},
		Location: loc,
	}
}

// Service is the deploy service the surfaces share.
func (a *App) Service() *deploy.Service { return a.svc }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			return reminder.ParseSpec(cfg.ReminderSpec())
		})
	}

	if a.adapter != nil {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.sup.Go("bot.dispatch", func(c context.Context) error {
			return a.bot.Run(c, a.updates)
		})
		a.sup.Go0("bot.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := a.adapter.UpdateMenuCommands(mctx, a.bot.MenuCommands()); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}

	if err := a.reminder.Start(a.sup.Context()); err != nil {
		return err
	}

	if a.http != nil {
		if err := a.http.Start(a.sup.Context()); err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			last := a.cfgm.Get()
			for {
				select {
				case <-c.Done():
					return
				case next, ok := <-sub:
					if !ok {
						return
					}
					a.applyConfig(last, next)
					last = next
				}
			}
		})
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started")
	return nil
}

// applyConfig applies what can change live (logging, owners, list count,
// reminder) and warns about sections that need a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if chatID, threadID, ok, err := next.GroupLogTarget(); err == nil {
		if !ok {
			chatID, threadID = 0, 0
		} else if threadID == 0 {
			threadID = next.Logging.Telegram.ThreadID
		}
		a.logs.SetTelegramTarget(chatID, threadID)
	}
	a.logs.Apply(next.LoggerSettings())

	if a.bot != nil {
		a.bot.Apply(next.Telegram.OwnerUserIDs, next.ListCount())
	}

	if _, loc, err := next.ScheduleSettings(); err != nil {
		a.log.Warn("invalid schedule config; reminder keeps previous", logx.Err(err))
	} else if err := a.reminder.Apply(reminderConfig(next, loc)); err != nil {
		a.log.Warn("reminder reconfigure failed", logx.Err(err))
	}

	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("config changed; restart required for these sections", logx.Strings("sections", restart))
	}
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeStores()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// step runs fn bounded by max without extending the caller's deadline.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("http", 3*time.Second, func(c context.Context) error {
		if a.http != nil {
			return a.http.Stop(c)
		}
		return nil
	})
	step("reminder", 2*time.Second, func(c context.Context) error { a.reminder.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error {
		if a.adapter != nil {
			return a.adapter.Stop(c)
		}
		return nil
	})
	step("mirror", 5*time.Second, func(c context.Context) error {
		if err := a.mirror.Flush(c); err != nil {
			return err
		}
		return a.mirrorSup.Stop(c)
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.closeStores() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStores() error {
	var errs []error
	if a.table != nil {
		errs = append(errs, a.table.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
