package application

import (
	"errors"
	"strings"
	"testing"
	"time"

	"servicegraph/internal/domain"
)

func TestValidateQuery(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name    string
		query   domain.Query
		wantErr bool
		field   string
		errMsg  string
	}{
		{
			name:  "minimal query",
			query: domain.Query{ProjectID: 1},
		},
		{
			name: "full query",
			query: domain.Query{
				ProjectID:    3,
				FromTypes:    []domain.NodeType{domain.NodeTypeService},
				ToTypes:      []domain.NodeType{domain.NodeTypeTransaction},
				EdgeStatuses: []domain.EdgeStatus{domain.EdgeStatusOK, domain.EdgeStatusUnexpectedError},
				StartDate:    &start,
				EndDate:      &end,
				MinVolume:    10,
			},
		},
		{
			name:    "missing project",
			query:   domain.Query{},
			wantErr: true,
			field:   "ProjectID",
			errMsg:  "project ID is required",
		},
		{
			name:    "negative project",
			query:   domain.Query{ProjectID: -1},
			wantErr: true,
			field:   "ProjectID",
			errMsg:  "greater than 0",
		},
		{
			name:    "unknown node type",
			query:   domain.Query{ProjectID: 1, FromTypes: []domain.NodeType{"database"}},
			wantErr: true,
			field:   "FromTypes",
			errMsg:  "unknown value database",
		},
		{
			name:    "unknown edge status",
			query:   domain.Query{ProjectID: 1, EdgeStatuses: []domain.EdgeStatus{"timeout"}},
			wantErr: true,
			field:   "EdgeStatuses",
		},
		{
			name:    "negative volume",
			query:   domain.Query{ProjectID: 1, MinVolume: -5},
			wantErr: true,
			field:   "MinVolume",
			errMsg:  "at least 0",
		},
		{
			name:    "end before start",
			query:   domain.Query{ProjectID: 1, StartDate: &end, EndDate: &start},
			wantErr: true,
			field:   "EndDate",
			errMsg:  "after the start date",
		},
		{
			name:    "empty range",
			query:   domain.Query{ProjectID: 1, StartDate: &start, EndDate: &start},
			wantErr: true,
			field:   "EndDate",
			errMsg:  "after the start date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if tt.errMsg != "" && !strings.Contains(ve.Message, tt.errMsg) {
				t.Errorf("Message = %q, want it to contain %q", ve.Message, tt.errMsg)
			}
			if !errors.Is(err, ErrInvalidQuery) {
				t.Error("expected errors.Is(err, ErrInvalidQuery)")
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&SourceError{Op: "fetch graph", Retryable: true, Err: errors.New("timeout")}) {
		t.Error("expected retryable")
	}
	if IsRetryable(&SourceError{Op: "fetch graph", Err: errors.New("bad request")}) {
		t.Error("expected not retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
	if !errors.Is(&SourceError{Op: "x", Err: errors.New("y")}, ErrSource) {
		t.Error("expected errors.Is(err, ErrSource)")
	}
}
