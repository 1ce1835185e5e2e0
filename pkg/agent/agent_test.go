package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"exogram/pkg/browser"
	"exogram/pkg/cognition"
	"exogram/pkg/llm"
	"exogram/pkg/session"
	"exogram/pkg/wisdom"
)

// fakeDriver records the primitives the loop performed.
type fakeDriver struct {
	actions  []string
	pageText string
	failNext error
}

func (d *fakeDriver) record(s string) { d.actions = append(d.actions, s) }

func (d *fakeDriver) step(name string) error {
	d.record(name)
	if d.failNext != nil {
		err := d.failNext
		d.failNext = nil
		return err
	}
	return nil
}

func (d *fakeDriver) Navigate(url string) error             { return d.step("navigate " + url) }
func (d *fakeDriver) Click(target string) error             { return d.step("click " + target) }
func (d *fakeDriver) Fill(label, value string) error        { return d.step("fill " + label + "=" + value) }
func (d *fakeDriver) SelectOption(label, option string) error {
	return d.step("select " + label + "=" + option)
}
func (d *fakeDriver) WaitVisible(target string) error { return d.step("wait " + target) }
func (d *fakeDriver) ExtractText() (string, error) {
	d.record("extract")
	return d.pageText, nil
}
func (d *fakeDriver) Observe() (*browser.PageState, error) {
	return &browser.PageState{
		URL:   "https://example.com",
		Title: "Example",
		Elements: []browser.Element{
			{Role: "button", Label: "Continue"},
		},
	}, nil
}

// scriptedProvider replays canned responses in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ []*llm.Message) (*llm.Message, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return llm.NewAssistantMessage(p.responses[i]), nil
}

func (p *scriptedProvider) GetModel() string { return "scripted" }

func newTestAgent(d driver, p llm.Provider, gate *session.Gate, maxSteps int) *Agent {
	if gate == nil {
		gate = session.NewGate(false)
	}
	return &Agent{handle: d, provider: p, gate: gate, maxSteps: maxSteps}
}

func actionJSON(kind, target, value string) string {
	return fmt.Sprintf(`{"action":%q,"target":%q,"value":%q,"reason":"test"}`, kind, target, value)
}

func TestExecuteToCompletion(t *testing.T) {
	d := &fakeDriver{pageText: "report filed: #1042"}
	p := &scriptedProvider{responses: []string{
		actionJSON("navigate", "https://example.com/reports", ""),
		actionJSON("click", "New report", ""),
		actionJSON("fill", "Amount", "42.00"),
		actionJSON("extract", "", ""),
		`{"action":"done","summary":"filed the expense report"}`,
	}}
	a := newTestAgent(d, p, nil, 10)

	result, err := a.Execute(context.Background(), "file my expense", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != session.StatusSuccess {
		t.Errorf("status = %s", result.Status)
	}
	if result.Steps != 4 {
		t.Errorf("steps = %d, want 4", result.Steps)
	}
	if result.Summary != "filed the expense report" {
		t.Errorf("summary = %q", result.Summary)
	}
	if !strings.Contains(result.Extracted, "#1042") {
		t.Errorf("extracted text lost: %q", result.Extracted)
	}

	want := []string{
		"navigate https://example.com/reports",
		"click New report",
		"fill Amount=42.00",
		"extract",
	}
	if len(d.actions) != len(want) {
		t.Fatalf("actions = %v", d.actions)
	}
	for i := range want {
		if d.actions[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, d.actions[i], want[i])
		}
	}
}

func TestExecuteSafeModeBlocksBeforePerforming(t *testing.T) {
	d := &fakeDriver{}
	p := &scriptedProvider{responses: []string{
		actionJSON("click", "Delete account", ""),
	}}
	a := newTestAgent(d, p, session.NewGate(true), 10)

	result, err := a.Execute(context.Background(), "close my account", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != session.StatusBlocked {
		t.Fatalf("status = %s, want blocked", result.Status)
	}
	if result.BlockedAction != "click" || result.BlockedTarget != "Delete account" {
		t.Errorf("blocked action = %q on %q", result.BlockedAction, result.BlockedTarget)
	}
	if len(d.actions) != 0 {
		t.Errorf("withheld action still reached the browser: %v", d.actions)
	}
	if result.Steps != 0 {
		t.Errorf("steps = %d, want 0", result.Steps)
	}
}

func TestExecuteRetriesUnparseableReplies(t *testing.T) {
	d := &fakeDriver{}
	p := &scriptedProvider{responses: []string{
		"let me think about that",
		`{"action":"teleport","target":"elsewhere"}`,
		`{"action":"done","summary":"nothing to do"}`,
	}}
	a := newTestAgent(d, p, nil, 5)

	result, err := a.Execute(context.Background(), "noop task", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != session.StatusSuccess {
		t.Errorf("status = %s", result.Status)
	}
	if p.calls != 3 {
		t.Errorf("model calls = %d, want 3 (two repairs)", p.calls)
	}
}

func TestExecuteFailsAfterRetryBound(t *testing.T) {
	d := &fakeDriver{}
	p := &scriptedProvider{responses: []string{"gibberish"}}
	a := newTestAgent(d, p, nil, 5)

	_, err := a.Execute(context.Background(), "task", nil)
	if err == nil {
		t.Fatal("expected error after exhausting model retries")
	}
	if p.calls != modelRetryBound {
		t.Errorf("model calls = %d, want %d", p.calls, modelRetryBound)
	}
}

func TestExecuteStepBudget(t *testing.T) {
	d := &fakeDriver{}
	p := &scriptedProvider{responses: []string{
		actionJSON("click", "Next page", ""),
	}}
	a := newTestAgent(d, p, nil, 3)

	result, err := a.Execute(context.Background(), "endless task", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != session.StatusFailure {
		t.Errorf("status = %s, want failure on budget exhaustion", result.Status)
	}
	if result.Steps != 3 {
		t.Errorf("steps = %d, want 3", result.Steps)
	}
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAgent(&fakeDriver{}, &scriptedProvider{responses: []string{"x"}}, nil, 5)

	_, err := a.Execute(ctx, "task", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteRecoversFromPrimitiveFailure(t *testing.T) {
	d := &fakeDriver{failNext: errors.New("element not found")}
	p := &scriptedProvider{responses: []string{
		actionJSON("click", "Missing button", ""),
		`{"action":"done","summary":"gave up on that control"}`,
	}}
	a := newTestAgent(d, p, nil, 5)

	result, err := a.Execute(context.Background(), "task", nil)
	if err != nil {
		t.Fatalf("a primitive failure must not abort the task: %v", err)
	}
	if result.Status != session.StatusSuccess {
		t.Errorf("status = %s", result.Status)
	}
}

func TestSystemPromptCarriesWisdom(t *testing.T) {
	a := newTestAgent(&fakeDriver{}, &scriptedProvider{}, nil, 5)

	bare := a.buildSystemPrompt(nil)
	if strings.Contains(bare, "Prior operating knowledge") {
		t.Error("no payload must mean no knowledge section")
	}

	record := &cognition.RichCognitionRecord{
		Website: cognition.WebsiteInfo{Name: "Acme Expenses", Description: "Expense portal"},
		Task:    cognition.TaskInfo{Summary: "File an expense"},
		OperationFlow: []cognition.OperationPhase{
			{Phase: "entry", Description: "Fill the form"},
		},
		Knowledge: cognition.OperationKnowledge{NavigationPattern: "Reports tab"},
		Meta:      cognition.Meta{Topic: "file-expense"},
	}
	with := a.buildSystemPrompt(wisdom.Build(record, false))
	if !strings.Contains(with, "Prior operating knowledge") {
		t.Error("payload section header missing")
	}
	if !strings.Contains(with, "Acme Expenses") {
		t.Error("payload content missing from system prompt")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: `{"action":"click","target":"Go"}`},
		{name: "fenced", input: "```json\n{\"action\":\"done\",\"summary\":\"ok\"}\n```"},
		{name: "unknown verb", input: `{"action":"fly","target":"moon"}`, wantErr: true},
		{name: "click without target", input: `{"action":"click"}`, wantErr: true},
		{name: "wait without target is fine", input: `{"action":"wait"}`},
		{name: "prose only", input: "I'm not sure", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAction(tt.input)
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
