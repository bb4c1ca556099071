package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deployrota/internal/storage"
	logx "deployrota/pkg/logx"
)

// SQLite keeps the table in a local database file. Useful as a stand-in for
// the hosted table or for a single-host deployment.
type SQLite struct {
	db    *sql.DB
	table string
	log   logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("remote.path is required for sqlite driver")
	}
	table := cfg.table()
	if !validIdent(table) {
		return nil, fmt.Errorf("remote.table: invalid identifier %q", table)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.OpenSQLiteDB(path, cfg.BusyTimeout.Milliseconds())
	if err != nil {
		return nil, err
	}
	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		deploy_date      TEXT PRIMARY KEY,
		responsible_name TEXT NOT NULL
	)`
	if _, err := db.ExecContext(context.Background(), ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", table, err)
	}
	return &SQLite{db: db, table: table, log: log}, nil
}

func (s *SQLite) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+s.table+`(deploy_date, responsible_name) VALUES(?, ?)
		 ON CONFLICT(deploy_date) DO UPDATE SET responsible_name = excluded.responsible_name`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.DeployDate, r.ResponsibleName); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Select(ctx context.Context) ([]Row, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT deploy_date, responsible_name FROM `+s.table+` ORDER BY deploy_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.DeployDate, &r.ResponsibleName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
