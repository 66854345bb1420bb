package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) waitFor(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d indexed files, got %v", want, r.snapshot())
	return nil
}

func TestWatcherIndexesNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w, err := New([]string{dir}, []string{".txt"}, true, rec.record)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(path, []byte("fresh content"), 0600); err != nil {
		t.Fatal(err)
	}

	paths := rec.waitFor(t, 1)
	if paths[0] != path {
		t.Errorf("indexed %q, want %q", paths[0], path)
	}
}

func TestWatcherFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w, err := New([]string{dir}, []string{".txt"}, true, rec.record)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("binary"), 0600); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(keep, []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}

	paths := rec.waitFor(t, 1)
	for _, p := range paths {
		if p != keep {
			t.Errorf("unexpected indexed path %q", p)
		}
	}
}

func TestWatcherDebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w, err := New([]string{dir}, []string{".txt"}, true, rec.record)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "busy.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("revision"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec.waitFor(t, 1)
	// Allow a settling period; the burst must not produce one call per write.
	time.Sleep(2 * debounceDelay)
	if got := len(rec.snapshot()); got >= 5 {
		t.Errorf("got %d index calls for a write burst, want fewer", got)
	}
}

func TestSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(existing, []byte("already here"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "present.bin"), []byte("skip"), 0600); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w, err := New([]string{dir}, []string{".txt"}, true, rec.record)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })

	w.SyncExistingFiles(context.Background())
	paths := rec.snapshot()
	if len(paths) != 1 || paths[0] != existing {
		t.Errorf("synced %v, want only %q", paths, existing)
	}
}
