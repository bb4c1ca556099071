package config

type Config struct {
	Schedule ScheduleConfig `json:"schedule"`
	Roster   RosterConfig   `json:"roster"`
	Storage  StorageConfig  `json:"storage"`
	Remote   RemoteConfig   `json:"remote"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Reminder ReminderConfig `json:"reminder"`
	HTTP     HTTPConfig     `json:"http"`
}

// ScheduleConfig defines the slot calendar.
//
// Example:
//
//	"schedule": { "start_date": "2025-05-08", "weekdays": ["monday", "thursday"] }
type ScheduleConfig struct {
	StartDate  string   `json:"start_date"`            // YYYY-MM-DD; default 2025-05-08
	Weekdays   []string `json:"weekdays,omitempty"`    // names or 0..6; default monday, thursday
	DateLayout string   `json:"date_layout,omitempty"` // Go layout; default 02/01/2006
	// Timezone decides what "today" is. Empty means the host local zone.
	Timezone     string `json:"timezone,omitempty"`
	DefaultCount int    `json:"default_count,omitempty"` // entries per listing; default 10
}

type RosterConfig struct {
	Key      string   `json:"key,omitempty"`      // storage key; default "deployNames"
	Defaults []string `json:"defaults,omitempty"` // used when nothing is stored
}

// StorageConfig controls local roster persistence.
//
//	"storage": { "driver": "file", "path": "./data/deployrota.json" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | memory
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RemoteConfig controls the schedule mirror.
//
// Security note: api_key is never logged.
type RemoteConfig struct {
	Driver      string  `json:"driver"` // postgrest | sqlite | memory | none
	URL         string  `json:"url,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Table       string  `json:"table,omitempty"`   // default deploy_schedule
	Timeout     string  `json:"timeout,omitempty"` // Go duration; "" or "0s" = none
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	Path        string  `json:"path,omitempty"` // sqlite only
	BusyTimeout string  `json:"busy_timeout,omitempty"`
	// MirrorCount is how many slots each save writes. 0 = one per name.
	MirrorCount int `json:"mirror_count,omitempty"`
}

type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat receiving log lines: "<chat_id>" or "<chat_id>:<thread_id>".
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig controls the "who deploys today" message.
type ReminderConfig struct {
	Enabled  bool   `json:"enabled"`
	Cron     string `json:"cron,omitempty"` // default "0 9 * * 1,4"; seconds field optional
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// HTTPConfig controls the JSON/ICS API.
//
// Prefer binding to localhost; there is no authentication.
type HTTPConfig struct {
	Enabled         bool   `json:"enabled"`
	Addr            string `json:"addr,omitempty"` // default 127.0.0.1:8080
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}
