package domain

import "time"

// SnapshotInfo describes one recorded snapshot
type SnapshotInfo struct {
	ID         int64
	ProjectID  int
	RecordedAt time.Time
	Nodes      int
	Edges      int
	Volume     int
}

// EdgeSample is the traffic of one edge in one recorded snapshot
type EdgeSample struct {
	SnapshotID int64
	RecordedAt time.Time
	Counters
}
