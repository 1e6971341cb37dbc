package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"servicegraph/internal/application/commands"
	"servicegraph/internal/domain"
	"servicegraph/internal/transform"
)

func init() {
	color.NoColor = true
}

func TestQueryFlags_Filters(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		flags   queryFlags
		wantErr string
		check   func(t *testing.T, q domain.Query)
	}{
		{
			name:  "defaults",
			flags: queryFlags{window: "all"},
			check: func(t *testing.T, q domain.Query) {
				if q.StartDate != nil || len(q.FromTypes) != 0 || q.MinVolume != 0 {
					t.Errorf("unexpected predicates: %+v", q)
				}
			},
		},
		{
			name:  "all predicates",
			flags: queryFlags{from: []string{"service"}, to: []string{"transaction"}, statuses: []string{"unexpected_error"}, window: "1h", minVolume: 10},
			check: func(t *testing.T, q domain.Query) {
				if len(q.FromTypes) != 1 || q.FromTypes[0] != domain.NodeTypeService {
					t.Errorf("FromTypes = %v", q.FromTypes)
				}
				if len(q.ToTypes) != 1 || q.ToTypes[0] != domain.NodeTypeTransaction {
					t.Errorf("ToTypes = %v", q.ToTypes)
				}
				if q.StartDate == nil || !q.StartDate.Equal(now.Add(-time.Hour)) {
					t.Errorf("StartDate = %v", q.StartDate)
				}
				if q.MinVolume != 10 {
					t.Errorf("MinVolume = %d", q.MinVolume)
				}
			},
		},
		{
			name:  "fixed range",
			flags: queryFlags{window: "all", start: "2026-03-01T09:00:00Z", end: "2026-03-01T10:00:00Z"},
			check: func(t *testing.T, q domain.Query) {
				if q.StartDate == nil || !q.StartDate.Equal(now.Add(-3*time.Hour)) {
					t.Errorf("StartDate = %v", q.StartDate)
				}
				if q.EndDate == nil || !q.EndDate.Equal(now.Add(-2*time.Hour)) {
					t.Errorf("EndDate = %v", q.EndDate)
				}
			},
		},
		{
			name:  "open ended range",
			flags: queryFlags{window: "all", start: "2026-03-01T11:30:00Z"},
			check: func(t *testing.T, q domain.Query) {
				if q.EndDate == nil || !q.EndDate.Equal(now) {
					t.Errorf("EndDate = %v, want now", q.EndDate)
				}
			},
		},
		{name: "end before start", flags: queryFlags{window: "all", start: "2026-03-01T10:00:00Z", end: "2026-03-01T09:00:00Z"}, wantErr: "after the start date"},
		{name: "end without start", flags: queryFlags{window: "all", end: "2026-03-01T10:00:00Z"}, wantErr: "--end needs --start"},
		{name: "range with window", flags: queryFlags{window: "1h", start: "2026-03-01T10:00:00Z"}, wantErr: "cannot be combined"},
		{name: "bad start", flags: queryFlags{window: "all", start: "yesterday"}, wantErr: "invalid --start"},
		{name: "unknown window", flags: queryFlags{window: "fortnight"}, wantErr: "unknown time window"},
		{name: "negative volume", flags: queryFlags{window: "all", minVolume: -1}, wantErr: "at least 0"},
		{name: "unknown type", flags: queryFlags{window: "all", from: []string{"database"}}, wantErr: "unknown value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := tt.flags.filters(7, now)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			q := state.Query()
			if q.ProjectID != 7 {
				t.Errorf("ProjectID = %d, want 7", q.ProjectID)
			}
			tt.check(t, q)
		})
	}
}

var (
	apiID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	getID = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	dbID  = uuid.MustParse("00000000-0000-0000-0000-0000000000a3")
)

func testPayload(withDB bool) *domain.Payload {
	p := &domain.Payload{Graph: domain.Graph{
		Nodes: []domain.Node{
			{ID: apiID, Type: domain.NodeTypeService, Name: "api"},
			{ID: getID, Type: domain.NodeTypeTransaction, Name: "GET /users", ParentID: &apiID},
		},
	}}
	if withDB {
		p.Graph.Nodes = append(p.Graph.Nodes, domain.Node{ID: dbID, Type: domain.NodeTypeService, Name: "db"})
		p.Graph.Edges = []domain.Edge{{FromNodeID: getID, ToNodeID: dbID, Counters: domain.Counters{OK: 9, UnexpectedError: 1}}}
	}
	return p
}

func TestPrintGraph(t *testing.T) {
	var buf bytes.Buffer
	printGraph(&buf, transform.Payload(testPayload(true), transform.DefaultOptions(time.Now())))
	out := buf.String()

	for _, want := range []string{"✓ api", "  ✓ GET /users", "GET /users  db", "9/0/1", "unhealthy"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, domain.GhostSuffix) {
		t.Errorf("ghost nodes must not be printed:\n%s", out)
	}
}

func TestPrintStaging(t *testing.T) {
	result, err := commands.NewDiffCommand(testPayload(true), testPayload(false), domain.DefaultThresholds(), time.Now()).Execute()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printStaging(&buf, result)
	out := buf.String()

	for _, want := range []string{"- node db", "- edge GET /users → db"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
