package eventbus

import "time"

// Event types published by the service.
const (
	RosterSaved     = "roster.saved"
	MirrorSucceeded = "mirror.succeeded"
	MirrorFailed    = "mirror.failed"
	ReminderSent    = "reminder.sent"
	ReminderFailed  = "reminder.failed"
	ConfigReloaded  = "config.reloaded"
)

// RosterSavedData is the payload of RosterSaved.
type RosterSavedData struct {
	Names []string
}

// MirrorData is the payload of MirrorSucceeded and MirrorFailed.
type MirrorData struct {
	RunID string
	Rows  int
	Took  time.Duration
	Err   string
}

// ReminderData is the payload of ReminderSent and ReminderFailed.
type ReminderData struct {
	Date        string
	Responsible string
	ChatID      int64
	Err         string
}
