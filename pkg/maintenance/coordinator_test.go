package maintenance

import (
	"errors"
	"testing"
	"time"
)

func TestScheduleEnqueuesOnlyWhenThresholdCrossed(t *testing.T) {
	c := New()
	c.Schedule("btree-primary", 0.1, 0, 0)
	if c.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0 for a healthy index", c.Pending())
	}
	c.Schedule("btree-primary", 0.5, 0, 0)
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 after fragmentation crosses threshold", c.Pending())
	}
}

func TestScheduleReprioritizesExistingTask(t *testing.T) {
	c := New()
	c.Schedule("idx", 0.5, 0, 0)
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}
	c.Schedule("idx", 0.9, 0, 0)
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1 (re-prioritized, not duplicated)", c.Pending())
	}
	h, ok := c.Health("idx")
	if !ok || h.Fragmentation != 0.9 {
		t.Fatalf("Health = %+v, want fragmentation 0.9", h)
	}
}

func TestPerformScheduledRunsHighestPriorityFirst(t *testing.T) {
	c := New()
	var order []string
	c.Register("low", func() error { order = append(order, "low"); return nil })
	c.Register("high", func() error { order = append(order, "high"); return nil })

	c.Schedule("low", 0.31, 0, 0)
	c.Schedule("high", 0.9, 9000, 190*time.Millisecond)

	done, err := c.PerformScheduled()
	if err != nil {
		t.Fatalf("PerformScheduled: %v", err)
	}
	if len(done) != 2 || done[0] != "high" || done[1] != "low" {
		t.Fatalf("done = %v, want [high low]", done)
	}
	if len(order) != 2 || order[0] != "high" {
		t.Fatalf("execution order = %v, want high before low", order)
	}
}

func TestPerformScheduledResetsHealthAfterRebuild(t *testing.T) {
	c := New()
	c.Register("idx", func() error { return nil })
	c.Schedule("idx", 0.5, 100, 0)

	if _, err := c.PerformScheduled(); err != nil {
		t.Fatalf("PerformScheduled: %v", err)
	}
	h, ok := c.Health("idx")
	if !ok {
		t.Fatal("expected health entry to survive a rebuild")
	}
	if h.NeedsMaintenance || h.Fragmentation != 0 {
		t.Fatalf("health after rebuild = %+v, want reset", h)
	}
	if h.LastMaintenance.IsZero() {
		t.Error("LastMaintenance should be stamped after a rebuild")
	}
}

func TestPerformScheduledFailsOnUnregisteredIndex(t *testing.T) {
	c := New()
	c.Schedule("idx", 0.9, 0, 0)
	_, err := c.PerformScheduled()
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("PerformScheduled err = %v, want ErrNotRegistered", err)
	}
}

func TestPerformScheduledPropagatesRebuildError(t *testing.T) {
	c := New()
	boom := errors.New("rebuild failed")
	c.Register("idx", func() error { return boom })
	c.Schedule("idx", 0.9, 0, 0)
	_, err := c.PerformScheduled()
	if !errors.Is(err, boom) {
		t.Fatalf("PerformScheduled err = %v, want %v", err, boom)
	}
}

func TestCancelRemovesPendingTask(t *testing.T) {
	c := New()
	c.Schedule("idx", 0.9, 0, 0)
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}
	c.Cancel("idx")
	if c.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0 after cancel", c.Pending())
	}
	// Cancel is idempotent.
	c.Cancel("idx")
}

func TestSkipsTaskThatHealedBeforeItsTurn(t *testing.T) {
	c := New()
	ran := false
	c.Register("idx", func() error { ran = true; return nil })
	c.Schedule("idx", 0.9, 0, 0)
	// A later healthy reading clears NeedsMaintenance without
	// dequeuing the already-queued task.
	c.Schedule("idx", 0.1, 0, 0)

	done, err := c.PerformScheduled()
	if err != nil {
		t.Fatalf("PerformScheduled: %v", err)
	}
	if len(done) != 0 || ran {
		t.Fatalf("expected the healed task to be skipped, done=%v ran=%v", done, ran)
	}
}
