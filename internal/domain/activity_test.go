package domain

import (
	"testing"
	"time"
)

func TestClassifyActivity(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		activity *NodeActivity
		want     Activity
	}{
		{"no record", nil, Inactive},
		{"empty timestamp", &NodeActivity{NodeID: "a"}, Inactive},
		{"garbage timestamp", &NodeActivity{NodeID: "a", LastActivity: "yesterday"}, Inactive},
		{"one minute ago", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T11:59:00Z"}, Active},
		{"exactly one hour ago", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T11:00:00Z"}, Active},
		{"just over one hour ago", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T10:59:59Z"}, Inactive},
		{"fractional seconds", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T11:30:00.123456Z"}, Active},
		{"offset timestamp", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T13:30:00+02:00"}, Active},
		{"zone-less timestamp", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T11:45:00"}, Active},
		{"space separated", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01 11:45:00.5"}, Active},
		{"future timestamp", &NodeActivity{NodeID: "a", LastActivity: "2024-05-01T12:10:00Z"}, Active},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyActivity(tt.activity, now, DefaultActivityWindow)
			if got != tt.want {
				t.Errorf("ClassifyActivity() = %s, want %s", got, tt.want)
			}
		})
	}
}
