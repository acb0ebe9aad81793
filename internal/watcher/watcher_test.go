package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type callRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *callRecorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *callRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &callRecorder{}
	w, err := NewWatcher(path, rec.record, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, v := range []string{"v2", "v3", "v4"} {
		if err := os.WriteFile(path, []byte(v), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, func() bool { return rec.count() >= 1 }) {
		t.Fatal("expected a change callback")
	}
	time.Sleep(300 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("burst of writes should collapse to one callback, got %d", n)
	}
	rec.mu.Lock()
	got := rec.paths[0]
	rec.mu.Unlock()
	if got != w.Path() {
		t.Errorf("callback path = %q, want %q", got, w.Path())
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &callRecorder{}
	w, err := NewWatcher(path, rec.record, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("writes to other files should be ignored, got %d callbacks", n)
	}
}

func TestWatcher_RemoveCancelsPending(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "doc.txt"), func(string) {
		t.Error("callback should not fire after remove")
	}, WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	w.started = true
	w.handleEvent(fsnotify.Event{Name: w.Path(), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: w.Path(), Op: fsnotify.Remove})
	time.Sleep(300 * time.Millisecond)
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "doc.txt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Error("expected error when the parent directory does not exist")
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "doc.txt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
