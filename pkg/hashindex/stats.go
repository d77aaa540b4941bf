// ABOUTME: Per-index running statistics for the extensible hash index
// ABOUTME: Mirrors pkg/btree's Stats; the maintenance coordinator scores readings passed to Schedule, not these

package hashindex

import "time"

// Stats tracks running counters for one Index instance.
type Stats struct {
	InsertCount uint64
	DeleteCount uint64
	FindCount   uint64
	LastRebuild time.Time
}

func (s *Stats) RecordInsert() { s.InsertCount++ }
func (s *Stats) RecordDelete() { s.DeleteCount++ }
func (s *Stats) RecordFind()   { s.FindCount++ }

// RecordRebuild stamps the time of a completed resize and resets the
// operation counters.
func (s *Stats) RecordRebuild(at time.Time) {
	s.LastRebuild = at
	s.InsertCount = 0
	s.DeleteCount = 0
	s.FindCount = 0
}
