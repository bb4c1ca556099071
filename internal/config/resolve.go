package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deployrota/internal/remote"
	"deployrota/internal/schedule"
	"deployrota/internal/storage"
	logx "deployrota/pkg/logx"
)

const (
	DefaultListCount   = 10
	DefaultReminder    = "0 9 * * 1,4"
	DefaultHTTPAddr    = "127.0.0.1:8080"
	defaultStoragePath = "./data/deployrota.json"
	defaultSQLitePath  = "./data/deployrota.db"
	defaultBusyTimeout = time.Second
)

// ScheduleSettings returns the slot calendar and the zone used for "today".
func (c *Config) ScheduleSettings() (schedule.Config, *time.Location, error) {
	sc := schedule.DefaultConfig()
	s := c.Schedule

	if raw := strings.TrimSpace(s.StartDate); raw != "" {
		d, err := schedule.ParseDate(raw)
		if err != nil {
			return sc, nil, fmt.Errorf("schedule.start_date: %w", err)
		}
		sc.Start = d
	}
	if len(s.Weekdays) > 0 {
		wds, err := schedule.ParseWeekdays(s.Weekdays)
		if err != nil {
			return sc, nil, fmt.Errorf("schedule.weekdays: %w", err)
		}
		sc.Weekdays = wds
	}
	if l := strings.TrimSpace(s.DateLayout); l != "" {
		sc.Layout = l
	}
	if err := sc.Validate(); err != nil {
		return sc, nil, err
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return sc, nil, fmt.Errorf("schedule.timezone: %w", err)
		}
		loc = l
	}
	return sc, loc, nil
}

func (c *Config) ListCount() int {
	if c.Schedule.DefaultCount > 0 {
		return c.Schedule.DefaultCount
	}
	return DefaultListCount
}

func (c *Config) StorageSettings() (storage.Config, error) {
	sc := c.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file":
		if path == "" {
			path = defaultStoragePath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			path = defaultSQLitePath
		}
		busy, err := ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	case "memory", "none":
		// Nothing survives a restart; "none" is accepted as an alias.
		return storage.Config{Driver: "memory"}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func (c *Config) RemoteSettings() (remote.Config, error) {
	rc := c.Remote
	out := remote.Config{
		Driver:     strings.ToLower(strings.TrimSpace(rc.Driver)),
		URL:        strings.TrimSpace(rc.URL),
		APIKey:     strings.TrimSpace(rc.APIKey),
		Table:      strings.TrimSpace(rc.Table),
		RatePerSec: rc.RatePerSec,
		Path:       strings.TrimSpace(rc.Path),
	}
	if out.Driver == "" {
		out.Driver = "none"
	}
	if rc.RatePerSec < 0 {
		return out, errors.New("remote.rate_per_sec: must be >= 0")
	}
	if rc.MirrorCount < 0 {
		return out, errors.New("remote.mirror_count: must be >= 0")
	}

	var err error
	if out.Timeout, err = ParseDurationField("remote.timeout", rc.Timeout); err != nil {
		return out, err
	}
	if out.BusyTimeout, err = ParseDurationOrDefault("remote.busy_timeout", rc.BusyTimeout, defaultBusyTimeout); err != nil {
		return out, err
	}

	switch out.Driver {
	case "none", "memory":
	case "postgrest", "supabase":
		if out.URL == "" {
			return out, fmt.Errorf("remote.url is required when remote.driver=%s", out.Driver)
		}
	case "sqlite", "sqlite3":
		if out.Path == "" {
			return out, errors.New("remote.path is required when remote.driver=sqlite")
		}
	default:
		return out, fmt.Errorf("unknown remote.driver: %s", rc.Driver)
	}
	return out, nil
}

func (c *Config) LoggerSettings() logx.Config {
	l := c.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// GroupLogTarget parses telegram.group_log ("<chat>" or "<chat>:<thread>").
// ok is false when it is unset.
func (c *Config) GroupLogTarget() (chatID int64, threadID int, ok bool, err error) {
	raw := strings.TrimSpace(c.Telegram.GroupLog)
	if raw == "" {
		return 0, 0, false, nil
	}
	chatPart, threadPart, hasThread := strings.Cut(raw, ":")
	chatID, err = strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("telegram.group_log: invalid chat id %q", chatPart)
	}
	if hasThread {
		threadID, err = strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil || threadID < 0 {
			return 0, 0, false, fmt.Errorf("telegram.group_log: invalid thread id %q", threadPart)
		}
	}
	return chatID, threadID, true, nil
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
}

func (c *Config) ReminderSpec() string {
	if s := strings.TrimSpace(c.Reminder.Cron); s != "" {
		return s
	}
	return DefaultReminder
}

// HTTPSettings are the parsed http section values.
type HTTPSettings struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c *Config) HTTPSettings() (HTTPSettings, error) {
	h := c.HTTP
	out := HTTPSettings{Addr: strings.TrimSpace(h.Addr)}
	if out.Addr == "" {
		out.Addr = DefaultHTTPAddr
	}
	var err error
	if out.ReadTimeout, err = ParseDurationOrDefault("http.read_timeout", h.ReadTimeout, 10*time.Second); err != nil {
		return out, err
	}
	if out.WriteTimeout, err = ParseDurationOrDefault("http.write_timeout", h.WriteTimeout, 15*time.Second); err != nil {
		return out, err
	}
	if out.ShutdownTimeout, err = ParseDurationOrDefault("http.shutdown_timeout", h.ShutdownTimeout, 5*time.Second); err != nil {
		return out, err
	}
	return out, nil
}

// Validate checks every section and reports all problems at once.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, _, err := c.ScheduleSettings(); err != nil {
		errs = append(errs, err)
	}
	if c.Schedule.DefaultCount < 0 {
		errs = append(errs, errors.New("schedule.default_count: must be >= 0"))
	}
	if _, err := c.StorageSettings(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RemoteSettings(); err != nil {
		errs = append(errs, err)
	}
	if !logx.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Logging.Telegram.MinLevel != "" && !logx.ValidLevel(c.Logging.Telegram.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.telegram.min_level: unknown level %q", c.Logging.Telegram.MinLevel))
	}
	if _, _, _, err := c.GroupLogTarget(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PollTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required when telegram.enabled=true"))
	}
	if c.Reminder.Enabled {
		if c.Reminder.ChatID == 0 {
			errs = append(errs, errors.New("reminder.chat_id is required when reminder.enabled=true"))
		}
		if !c.Telegram.Enabled {
			errs = append(errs, errors.New("reminder.enabled requires telegram.enabled"))
		}
	}
	if _, err := c.HTTPSettings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
