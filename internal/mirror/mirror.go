// Package mirror copies the schedule implied by a saved roster to the
// remote table without making the saver wait.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"deployrota/internal/eventbus"
	"deployrota/internal/remote"
	"deployrota/internal/roster"
	"deployrota/internal/runtime/supervisor"
	"deployrota/internal/schedule"
	logx "deployrota/pkg/logx"
)

type Config struct {
	Schedule schedule.Config
	// Count is how many slots are written per save. 0 writes one full
	// rotation (one slot per name).
	Count   int
	Timeout time.Duration // 0 = no timeout
}

// Mirror implements roster.Mirror. Each call starts an independent upsert;
// runs are never awaited, retried, or canceled by later saves.
type Mirror struct {
	cfg   Config
	table remote.Table
	sup   *supervisor.Supervisor
	bus   eventbus.Bus
	log   logx.Logger

	// mu guards closed and orders wg.Add before Flush's Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ roster.Mirror = (*Mirror)(nil)

// New returns a Mirror writing to table. sup and bus may be nil.
func New(cfg Config, table remote.Table, sup *supervisor.Supervisor, bus eventbus.Bus, log logx.Logger) *Mirror {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Mirror{
		cfg:   cfg,
		table: table,
		sup:   sup,
		bus:   bus,
		log:   log.With(logx.String("comp", "mirror")),
	}
}

// Rows returns what a save of r would write.
func (m *Mirror) Rows(r roster.Roster) ([]remote.Row, error) {
	n := m.cfg.Count
	if n <= 0 {
		n = len(r)
	}
	entries, err := m.cfg.Schedule.Generate(r, n)
	if err != nil {
		return nil, err
	}
	return remote.Rows(entries, m.cfg.Schedule.Layout), nil
}

func (m *Mirror) Mirror(r roster.Roster) {
	if m.table == nil {
		m.log.Debug("remote disabled, mirror skipped")
		return
	}
	rows, err := m.Rows(r)
	if err != nil {
		m.log.Warn("mirror skipped", logx.Err(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	runID := uuid.NewString()
	run := func(ctx context.Context) {
		defer m.wg.Done()
		m.upsert(ctx, runID, rows)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Warn("mirror closed, run dropped", logx.Int("rows", len(rows)))
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	if m.sup != nil {
		m.sup.Go0("mirror."+runID[:8], run)
		return
	}
	go run(context.Background())
}

func (m *Mirror) upsert(ctx context.Context, runID string, rows []remote.Row) {
	// Shutdown must not cut a write short; only the configured timeout does.
	ctx = context.WithoutCancel(ctx)
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	log := m.log.With(logx.String("run", runID))
	started := time.Now()
	err := m.table.Upsert(ctx, rows)
	took := time.Since(started)

	data := eventbus.MirrorData{RunID: runID, Rows: len(rows), Took: took}
	if err != nil {
		data.Err = err.Error()
		log.Warn("mirror failed", logx.Int("rows", len(rows)), logx.Duration("took", took), logx.Err(err))
		m.publish(eventbus.MirrorFailed, data)
		return
	}
	log.Info("mirror done", logx.Int("rows", len(rows)), logx.Duration("took", took))
	m.publish(eventbus.MirrorSucceeded, data)
}

func (m *Mirror) publish(typ string, data eventbus.MirrorData) {
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

// Flush stops accepting runs and waits for in-flight ones, bounded by ctx.
// Saves after Flush are still stored locally but no longer mirrored.
func (m *Mirror) Flush(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
