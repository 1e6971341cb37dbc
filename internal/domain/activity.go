package domain

import (
	"strings"
	"time"
)

// Activity marks whether a node has been seen recently
type Activity string

const (
	Active   Activity = "active"
	Inactive Activity = "inactive"
)

// DefaultActivityWindow is how long a node stays active after its last call
const DefaultActivityWindow = time.Hour

// Layouts accepted for last_activity, tried in order. Zone-less forms are read as UTC.
var activityLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// ParseActivity parses a last_activity timestamp
func ParseActivity(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range activityLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ClassifyActivity classifies an activity record at time now. Missing records,
// unparsable timestamps, and timestamps older than window are inactive.
func ClassifyActivity(activity *NodeActivity, now time.Time, window time.Duration) Activity {
	if activity == nil {
		return Inactive
	}
	last, ok := ParseActivity(activity.LastActivity)
	if !ok {
		return Inactive
	}
	if now.Sub(last) > window {
		return Inactive
	}
	return Active
}
