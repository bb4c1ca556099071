package remote

import (
	"context"
	"sort"
	"sync"
)

// Memory is a Table held in process memory. Rows keep insertion order, and
// Select sorts them by the raw deploy_date text like a real table would.
type Memory struct {
	mu      sync.Mutex
	rows    map[string]string
	order   []string
	upserts int
	err     error
}

func NewMemory() *Memory {
	return &Memory{rows: map[string]string{}}
}

// FailWith makes every following call return err (nil clears it).
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Upserts reports how many successful Upsert calls were made.
func (m *Memory) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *Memory) Upsert(_ context.Context, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, r := range rows {
		if _, ok := m.rows[r.DeployDate]; !ok {
			m.order = append(m.order, r.DeployDate)
		}
		m.rows[r.DeployDate] = r.ResponsibleName
	}
	m.upserts++
	return nil
}

func (m *Memory) Select(_ context.Context) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Row, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, Row{DeployDate: k, ResponsibleName: m.rows[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeployDate < out[j].DeployDate })
	return out, nil
}

func (m *Memory) Close() error { return nil }
