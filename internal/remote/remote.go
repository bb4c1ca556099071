// Package remote mirrors the generated schedule to a table store and reads
// it back ("fetch mode").
package remote

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "deployrota/pkg/logx"
)

const DefaultTable = "deploy_schedule"

var ErrDisabled = errors.New("remote disabled")

// Row is one record of the deploy_schedule table.
type Row struct {
	DeployDate      string `json:"deploy_date"`
	ResponsibleName string `json:"responsible_name"`
}

// Table is the remote table-store. Upsert resolves conflicts on DeployDate;
// Select returns every row ordered by deploy_date ascending.
type Table interface {
	Upsert(ctx context.Context, rows []Row) error
	Select(ctx context.Context) ([]Row, error)
	Close() error
}

type Config struct {
	Driver      string // postgrest | sqlite | memory | none
	URL         string
	APIKey      string
	Table       string
	Timeout     time.Duration // per mirror upsert and stored-rows fetch; 0 = none
	RatePerSec  float64       // postgrest only; 0 = unpaced
	Path        string        // sqlite only
	BusyTimeout time.Duration // sqlite only
}

func (c Config) table() string {
	if t := strings.TrimSpace(c.Table); t != "" {
		return t
	}
	return DefaultTable
}

// Open returns the configured table, or (nil, ErrDisabled) for "none".
func Open(cfg Config, log logx.Logger) (Table, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "remote"), logx.String("driver", driver))

	switch driver {
	case "", "none":
		return nil, ErrDisabled
	case "memory", "mem":
		return NewMemory(), nil
	case "postgrest", "supabase":
		return newPostgREST(cfg, nil, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown remote driver: " + driver)
	}
}
