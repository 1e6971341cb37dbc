package application

import (
	"errors"
	"testing"
	"time"

	"servicegraph/internal/domain"
)

func TestFilterState_Toggles(t *testing.T) {
	f := NewFilterState(7)

	q := f.ToggleEdgeStatus(domain.EdgeStatusUnexpectedError)
	if len(q.EdgeStatuses) != 1 {
		t.Fatalf("expected one status, got %v", q.EdgeStatuses)
	}
	q = f.ToggleEdgeStatus(domain.EdgeStatusUnexpectedError)
	if len(q.EdgeStatuses) != 0 {
		t.Errorf("expected status removed, got %v", q.EdgeStatuses)
	}

	f.ToggleFromType(domain.NodeTypeService)
	f.ToggleToType(domain.NodeTypeTransaction)
	q = f.Query()
	if q.ProjectID != 7 || len(q.FromTypes) != 1 || len(q.ToTypes) != 1 {
		t.Errorf("unexpected query: %+v", q)
	}
}

func TestFilterState_QueryIsACopy(t *testing.T) {
	f := NewFilterState(1)
	f.ToggleFromType(domain.NodeTypeService)

	q := f.Query()
	q.FromTypes[0] = domain.NodeTypeTransaction

	if f.Query().FromTypes[0] != domain.NodeTypeService {
		t.Error("mutating a returned query must not change the state")
	}
}

func TestFilterState_CycleWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFilterState(1)

	q := f.CycleWindow(now)
	if f.Window().Name != "15m" {
		t.Errorf("expected 15m, got %s", f.Window().Name)
	}
	if q.StartDate == nil || !q.StartDate.Equal(now.Add(-15*time.Minute)) {
		t.Errorf("unexpected start: %v", q.StartDate)
	}

	for range len(domain.TimeWindows) - 1 {
		q = f.CycleWindow(now)
	}
	if f.Window().Name != "all" || q.StartDate != nil {
		t.Errorf("expected to wrap around to all, got %s %v", f.Window().Name, q.StartDate)
	}
}

func TestFilterState_SetMinVolume(t *testing.T) {
	f := NewFilterState(1)

	if _, err := f.SetMinVolume(-1); err == nil {
		t.Error("expected error for negative volume")
	}
	q, err := f.SetMinVolume(25)
	if err != nil {
		t.Fatalf("SetMinVolume() error: %v", err)
	}
	if q.MinVolume != 25 {
		t.Errorf("expected 25, got %d", q.MinVolume)
	}
}

func TestFilterState_SetRange(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Minute)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{"valid range", start, end, false},
		{"end equals start", start, start, true},
		{"end before start", end, start, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilterState(1)
			q, err := f.SetRange(tt.start, tt.end)
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != "EndDate" {
					t.Fatalf("expected an EndDate validation error, got %v", err)
				}
				if f.Ranged() || q.StartDate != nil {
					t.Error("a rejected range must not change the state")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetRange() error: %v", err)
			}
			if err := ValidateQuery(q); err != nil {
				t.Errorf("ValidateQuery() error: %v", err)
			}
		})
	}
}

func TestFilterState_RangeSurvivesRefresh(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Minute)
	f := NewFilterState(1)
	f.SetWindow(domain.TimeWindows[1], start)

	if _, err := f.SetRange(start, end); err != nil {
		t.Fatalf("SetRange() error: %v", err)
	}
	q := f.Refresh(end.Add(3 * time.Hour))
	if q.StartDate == nil || !q.StartDate.Equal(start) || q.EndDate == nil || !q.EndDate.Equal(end) {
		t.Fatalf("range was re-anchored: %v %v", q.StartDate, q.EndDate)
	}
	if f.Window().Name != "10:00..10:20" {
		t.Errorf("window = %q", f.Window().Name)
	}

	q = f.CycleWindow(end)
	if f.Ranged() || f.Window().Name != "all" || q.StartDate != nil || q.EndDate != nil {
		t.Errorf("cycling should reset the range, got %s %v %v", f.Window().Name, q.StartDate, q.EndDate)
	}
}

func TestFilterState_RefreshReanchorsPreset(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFilterState(1)
	f.SetWindow(domain.TimeWindows[2], now)

	later := now.Add(10 * time.Minute)
	q := f.Refresh(later)
	if q.StartDate == nil || !q.StartDate.Equal(later.Add(-time.Hour)) || q.EndDate != nil {
		t.Errorf("unexpected bounds: %v %v", q.StartDate, q.EndDate)
	}
}
