package domain

import "testing"

func TestClassifyEdgeHealth(t *testing.T) {
	tests := []struct {
		name            string
		ok              int
		expectedError   int
		unexpectedError int
		want            Health
	}{
		{"no traffic", 0, 0, 0, Healthy},
		{"only ok", 10, 0, 0, Healthy},
		{"only expected errors", 0, 5, 0, Unhealthy},
		{"only unexpected errors", 0, 0, 1, Unhealthy},
		{"expected error ratio below threshold", 100, 3, 0, Unhealthy},
		{"expected error ratio at threshold", 98, 2, 0, Healthy},
		{"expected error ratio above threshold", 1000, 3, 0, Healthy},
		{"unexpected error ratio below threshold", 9998, 0, 1, Unhealthy},
		{"unexpected error ratio at threshold", 9999, 0, 1, Healthy},
		{"single unexpected error in many", 100000, 0, 1, Healthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyEdgeHealth(tt.ok, tt.expectedError, tt.unexpectedError)
			if got != tt.want {
				t.Errorf("ClassifyEdgeHealth(%d, %d, %d) = %s, want %s",
					tt.ok, tt.expectedError, tt.unexpectedError, got, tt.want)
			}
		})
	}
}

func TestThresholds_ClassifyHealth_Configurable(t *testing.T) {
	loose := Thresholds{ExpectedError: 0.9, UnexpectedError: 0.9}

	if got := loose.ClassifyHealth(100, 3, 0); got != Healthy {
		t.Errorf("loose thresholds: got %s, want healthy", got)
	}
	if got := DefaultThresholds().ClassifyHealth(100, 3, 0); got != Unhealthy {
		t.Errorf("default thresholds: got %s, want unhealthy", got)
	}
}
