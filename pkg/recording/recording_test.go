package recording

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNormalizeWorkflow(t *testing.T) {
	export := &WorkflowExport{
		Name: "expense report",
		Steps: []workflowStep{
			{Type: "navigation", URL: "https://expenses.example.com/login", Timestamp: 1000},
			{Type: "input", Label: "Email", Value: "user@example.com", Timestamp: 2000},
			{Type: "click", Text: "Sign in", Timestamp: 3000},
			{Type: "scroll", Timestamp: 3500},
			{Type: "click", X: 512, Y: 211, Timestamp: 4000},
			{Type: "select_change", AriaLabel: "Expense category", Value: "Travel", Timestamp: 5000},
		},
	}

	doc, warnings, err := Normalize(Source{Topic: "file-expense", Workflow: export})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(doc.Steps) != 4 {
		t.Fatalf("expected 4 steps after dropping non-semantic entries, got %d", len(doc.Steps))
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}

	wantKinds := []Kind{KindNavigate, KindType, KindClick, KindSelect}
	for i, k := range wantKinds {
		if doc.Steps[i].Kind != k {
			t.Errorf("step %d: kind = %q, want %q", i, doc.Steps[i].Kind, k)
		}
		if doc.Steps[i].Index != i {
			t.Errorf("step %d: index = %d, want %d", i, doc.Steps[i].Index, i)
		}
	}

	if doc.StartURL != "https://expenses.example.com/login" {
		t.Errorf("StartURL = %q", doc.StartURL)
	}
	if doc.Source != "workflow-export" {
		t.Errorf("Source = %q", doc.Source)
	}
	if doc.Steps[1].Target != "Email" {
		t.Errorf("type step target = %q, want label fallback", doc.Steps[1].Target)
	}
}

func TestNormalizeWorkflowUnknownKind(t *testing.T) {
	export := &WorkflowExport{Steps: []workflowStep{
		{Type: "navigation", URL: "https://example.com"},
		{Type: "teleport", Text: "somewhere"},
	}}

	_, _, err := Normalize(Source{Topic: "t", Workflow: export})
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if !strings.Contains(formatErr.Reason, "teleport") {
		t.Errorf("reason does not name the offending kind: %s", formatErr.Reason)
	}
}

func TestNormalizeWorkflowTimestampOrder(t *testing.T) {
	export := &WorkflowExport{Steps: []workflowStep{
		{Type: "navigation", URL: "https://example.com", Timestamp: 5000},
		{Type: "click", Text: "Back", Timestamp: 1000},
	}}

	_, _, err := Normalize(Source{Topic: "t", Workflow: export})
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *FormatError for decreasing timestamps, got %v", err)
	}
}

func TestParseWorkflowExport(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "flat shape", raw: `{"name":"x","steps":[{"type":"click","text":"Go"}]}`},
		{name: "nested under workflow", raw: `{"workflow":{"steps":[{"type":"click","text":"Go"}]}}`},
		{name: "nested under definition", raw: `{"definition":{"steps":[{"type":"click","text":"Go"}]}}`},
		{name: "no steps anywhere", raw: `{"name":"x"}`, wantErr: true},
		{name: "not json", raw: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export, err := ParseWorkflowExport([]byte(tt.raw))
			if tt.wantErr {
				var formatErr *FormatError
				if !errors.As(err, &formatErr) {
					t.Fatalf("expected *FormatError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(export.Steps) != 1 {
				t.Errorf("steps = %d, want 1", len(export.Steps))
			}
		})
	}
}

func TestNormalizeLive(t *testing.T) {
	now := time.Now()
	capture := &LiveCapture{
		Topic:    "search-flights",
		StartURL: "https://flights.example.com",
		Events: []LiveEvent{
			{Action: "navigate", URL: "https://flights.example.com", CapturedAt: now},
			{Action: "type", Target: "From", Value: "SFO", CapturedAt: now.Add(time.Second)},
			{Action: "click", CapturedAt: now.Add(2 * time.Second)},
			{Action: "wait", WaitMS: 500, CapturedAt: now.Add(3 * time.Second)},
		},
	}

	doc, warnings, err := Normalize(Source{Live: capture})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(doc.Steps) != 3 {
		t.Fatalf("expected 3 steps (targetless click dropped), got %d", len(doc.Steps))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if doc.Source != "live-capture" {
		t.Errorf("Source = %q", doc.Source)
	}
	// A wait step needs no target.
	if doc.Steps[2].Kind != KindWait || doc.Steps[2].WaitMS != 500 {
		t.Errorf("wait step not preserved: %+v", doc.Steps[2])
	}
}

func TestNormalizeNoSource(t *testing.T) {
	_, _, err := Normalize(Source{Topic: "t"})
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
}

func TestValueTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	export := &WorkflowExport{Steps: []workflowStep{
		{Type: "input", Label: "Notes", Value: long},
	}}
	doc, _, err := Normalize(Source{Topic: "t", Workflow: export})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got := doc.Steps[0].Value; len([]rune(got)) > maxValueLen+1 {
		t.Errorf("value not truncated: %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(doc.Steps[0].Value, "…") {
		t.Errorf("truncated value missing ellipsis marker: %q", doc.Steps[0].Value)
	}
}

func TestValueTruncationKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("报销单据审批流程", 40)
	export := &WorkflowExport{Steps: []workflowStep{
		{Type: "input", Label: "备注", Value: long},
	}}
	doc, _, err := Normalize(Source{Topic: "t", Workflow: export})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	got := doc.Steps[0].Value
	if !utf8.ValidString(got) {
		t.Fatalf("truncated value is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated value missing ellipsis marker: %q", got)
	}
	if n := len([]rune(got)); n != maxValueLen+1 {
		t.Errorf("truncated to %d runes, want %d plus the marker", n, maxValueLen)
	}
	if want := string([]rune(long)[:maxValueLen]); !strings.HasPrefix(got, want) {
		t.Errorf("truncation shifted the kept prefix: %q", got)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := &RawStepsDocument{
		Topic:     "round-trip",
		Source:    "live-capture",
		StartURL:  "https://example.com",
		CreatedAt: ts,
		Steps: []RawStep{
			{Index: 0, Kind: KindNavigate, URL: "https://example.com"},
			{Index: 1, Kind: KindClick, Target: "Log in", Timestamp: &ts},
		},
	}

	path := StepsPath(dir, doc.Topic)
	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if filepath.Base(path) != "round-trip.raw_steps.json" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}

	loaded, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if loaded.Topic != doc.Topic || len(loaded.Steps) != 2 {
		t.Errorf("loaded document mismatch: %+v", loaded)
	}
	if loaded.Steps[1].Target != "Log in" {
		t.Errorf("step target lost in round trip: %+v", loaded.Steps[1])
	}
}

func TestLoadDocumentRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := StepsPath(dir, "bad")
	doc := &RawStepsDocument{
		Topic:     "bad",
		Source:    "live-capture",
		CreatedAt: time.Now().UTC(),
		Steps:     []RawStep{{Kind: KindNavigate, URL: "https://example.com"}},
	}
	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	// Corrupt the file so validation fails on load.
	raw := `{"topic":"bad","source":"live-capture","created_at":"2026-01-01T00:00:00Z","steps":[{"idx":0,"action":"fly"}]}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := LoadDocument(path); err == nil {
		t.Fatal("expected error loading document with unknown kind")
	}
}
