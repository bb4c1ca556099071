package roster

import (
	"context"
	"encoding/json"
	"fmt"

	"deployrota/internal/storage"
	logx "deployrota/pkg/logx"
)

// DefaultKey is the storage key holding the roster JSON array.
const DefaultKey = "deployNames"

// KeyValueStore is the subset of storage.Store the roster needs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Mirror receives every saved roster. Implementations must not block the
// caller; failures are theirs to log.
type Mirror interface {
	Mirror(r Roster)
}

// Store persists the roster under one key and forwards saves to a Mirror.
type Store struct {
	kv       KeyValueStore
	key      string
	defaults Roster
	mirror   Mirror
	log      logx.Logger
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithDefaults overrides the roster returned when nothing is stored.
func WithDefaults(names []string) Option {
	return func(s *Store) {
		if d := Normalize(names); len(d) > 0 {
			s.defaults = d
		}
	}
}

func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

func WithLogger(log logx.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore returns a Store over kv. A nil kv keeps the roster in memory.
func NewStore(kv KeyValueStore, opts ...Option) *Store {
	if kv == nil {
		kv = storage.NewMemory()
	}
	s := &Store{kv: kv, key: DefaultKey, defaults: DefaultNames.Clone()}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Store) Defaults() Roster { return s.defaults.Clone() }

// Load returns the stored roster. A missing key, a read error or malformed
// content all yield the defaults; Load never fails.
func (s *Store) Load(ctx context.Context) Roster {
	b, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Debug("roster read failed, using defaults", logx.String("key", s.key), logx.Err(err))
		return s.Defaults()
	}
	if !ok {
		return s.Defaults()
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		s.log.Debug("stored roster malformed, using defaults", logx.String("key", s.key), logx.Err(err))
		return s.Defaults()
	}
	if names == nil {
		// A stored null counts as missing; a stored [] stays empty.
		return s.Defaults()
	}
	return Normalize(names)
}

// Save normalizes r, writes it locally and hands it to the mirror.
// The local write is authoritative: when it fails the error is returned
// and the mirror is not called. Mirror failures never reach the caller.
func (s *Store) Save(ctx context.Context, r Roster) (Roster, error) {
	out := Normalize(r)
	b, err := json.Marshal([]string(out))
	if err != nil {
		return nil, err
	}
	if err := s.kv.Put(ctx, s.key, b); err != nil {
		return nil, fmt.Errorf("save roster: %w", err)
	}
	s.log.Info("roster saved", logx.Int("names", len(out)))
	if s.mirror != nil {
		s.mirror.Mirror(out.Clone())
	}
	return out, nil
}
