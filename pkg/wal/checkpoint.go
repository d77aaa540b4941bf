package wal

import (
	"time"
)

// DefaultCheckpointInterval is how often a Checkpointer flushes and
// fsyncs by default.
const DefaultCheckpointInterval = 10 * time.Minute

// Checkpointer periodically flushes dirty buffer-pool pages and
// fsyncs the log, bounding how much of the log a future recovery must
// replay. The core's page header carries an LSN field but nothing yet
// gates a page flush on "its LSN is durable in the log first" — a
// checkpoint here only shortens recovery, it does not by itself make
// recovery correct without that ordering rule.
type Checkpointer struct {
	wal      *WAL
	interval time.Duration
	flushFn  func() error
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCheckpointer builds a checkpointer that calls flushFn (typically
// the buffer pool flushing every dirty page) on each tick.
func NewCheckpointer(w *WAL, flushFn func() error) *Checkpointer {
	return &Checkpointer{
		wal:      w,
		interval: DefaultCheckpointInterval,
		flushFn:  flushFn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// SetInterval overrides the checkpoint period; call before Start.
func (c *Checkpointer) SetInterval(interval time.Duration) {
	c.interval = interval
}

// Start launches the background checkpointing loop.
func (c *Checkpointer) Start() {
	go c.run()
}

// Stop signals the loop to exit and waits for it to do so.
func (c *Checkpointer) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Checkpointer) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Checkpoint()
		case <-c.stopCh:
			return
		}
	}
}

// Checkpoint flushes dirty pages and fsyncs the log.
func (c *Checkpointer) Checkpoint() error {
	if err := c.flushFn(); err != nil {
		return err
	}
	return c.wal.Fsync()
}
