package bot

import (
	"sync"
	"time"

	"deployrota/internal/roster"
)

const DefaultDraftTTL = 30 * time.Minute

// drafts holds one unsaved roster per chat. A draft starts as a copy of the
// saved roster and expires after ttl without edits.
type drafts struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[int64]draft
}

type draft struct {
	names   roster.Roster
	touched time.Time
}

func newDrafts(ttl time.Duration, now func() time.Time) *drafts {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	if now == nil {
		now = time.Now
	}
	return &drafts{ttl: ttl, now: now, m: map[int64]draft{}}
}

// get returns a copy of the chat's live draft.
func (d *drafts) get(chat int64) (roster.Roster, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dr, ok := d.m[chat]
	if !ok {
		return nil, false
	}
	if d.now().Sub(dr.touched) > d.ttl {
		delete(d.m, chat)
		return nil, false
	}
	return dr.names.Clone(), true
}

func (d *drafts) put(chat int64, names roster.Roster) {
	d.mu.Lock()
	d.m[chat] = draft{names: names.Clone(), touched: d.now()}
	d.mu.Unlock()
}

func (d *drafts) drop(chat int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.m[chat]
	delete(d.m, chat)
	return ok
}

// sweep removes expired drafts and returns how many were removed.
func (d *drafts) sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	n := 0
	for chat, dr := range d.m {
		if now.Sub(dr.touched) > d.ttl {
			delete(d.m, chat)
			n++
		}
	}
	return n
}
