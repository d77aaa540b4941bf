package wal

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestCheckpointFlushesAndFsyncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	var flushCalled int32
	c := NewCheckpointer(w, func() error {
		atomic.StoreInt32(&flushCalled, 1)
		return nil
	})
	if err := c.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if atomic.LoadInt32(&flushCalled) != 1 {
		t.Error("flush function should have been called")
	}
}

func TestCheckpointPropagatesFlushError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	c := NewCheckpointer(w, func() error { return errors.New("disk full") })
	if err := c.Checkpoint(); err == nil {
		t.Error("expected checkpoint to fail when flush returns an error")
	}
}

func TestCheckpointerRunsOnInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	var count int32
	c := NewCheckpointer(w, func() error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	c.SetInterval(40 * time.Millisecond)
	c.Start()
	defer c.Stop()

	time.Sleep(180 * time.Millisecond)
	if atomic.LoadInt32(&count) < 2 {
		t.Errorf("expected at least 2 automatic checkpoints, got %d", count)
	}
}

func TestCheckpointerStopCompletesPromptly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	c := NewCheckpointer(w, func() error { return nil })
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete within timeout")
	}
}
