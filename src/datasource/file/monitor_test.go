package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileMonitorWatch(t *testing.T) {
	dir := t.TempDir()
	monitor, err := NewFileMonitor(dir, "feedback.xlsx")
	if err != nil {
		t.Fatalf("NewFileMonitor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 10)
	done := make(chan error, 1)
	go func() {
		done <- monitor.Watch(ctx, func(path string) { changed <- path })
	}()

	// 其他文件不触发
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "feedback.xlsx")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if filepath.Base(got) != "feedback.xlsx" {
			t.Errorf("handler called for %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change event for feedback.xlsx")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestNewFileMonitorMissingDir(t *testing.T) {
	if _, err := NewFileMonitor(filepath.Join(t.TempDir(), "nope"), "a.xlsx"); err == nil {
		t.Error("expected error for missing directory")
	}
}
