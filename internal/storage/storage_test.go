package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "deployrota/pkg/logx"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{"memory": NewMemory()}

	fs, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	out["file"] = fs

	ss, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "state.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	out["sqlite"] = ss

	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestStoreGetPut(t *testing.T) {
	ctx := context.Background()
	for name, st := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := st.Get(ctx, "deployNames"); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}
			if err := st.Put(ctx, "deployNames", []byte(`["Ana"]`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := st.Put(ctx, "deployNames", []byte(`["Ana","Bia"]`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, ok, err := st.Get(ctx, "deployNames")
			if err != nil || !ok || string(v) != `["Ana","Bia"]` {
				t.Fatalf("get = %q ok=%v err=%v", v, ok, err)
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	cfg := Config{Driver: "file", Path: path}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put(ctx, "k", []byte("not json at all")); err != nil {
		t.Fatal(err)
	}
	_ = st.Close()

	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	v, ok, err := st2.Get(ctx, "k")
	if err != nil || !ok || string(v) != "not json at all" {
		t.Fatalf("after reopen: %q ok=%v err=%v", v, ok, err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCorruptDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	if _, ok, err := st.Get(context.Background(), "deployNames"); ok || err != nil {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put(ctx, "deployNames", []byte(`["Ana"]`)); err != nil {
		t.Fatal(err)
	}
	_ = st.Close()

	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	v, ok, err := st2.Get(ctx, "deployNames")
	if err != nil || !ok || string(v) != `["Ana"]` {
		t.Fatalf("after reopen: %q ok=%v err=%v", v, ok, err)
	}
}

func TestOpenDrivers(t *testing.T) {
	if _, err := Open(Config{Driver: "none"}, logx.Nop()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("none: err = %v", err)
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func TestClosedMemoryStore(t *testing.T) {
	st := NewMemory()
	_ = st.Close()
	if err := st.Put(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("put after close: %v", err)
	}
}
