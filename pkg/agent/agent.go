// Package agent implements the default task executor: an
// observe-think-act loop that drives the shared browser handle with
// model-chosen actions until the task is done or the step budget runs
// out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"exogram/pkg/browser"
	"exogram/pkg/llm"
	"exogram/pkg/logging"
	"exogram/pkg/session"
	"exogram/pkg/wisdom"
)

const (
	// defaultMaxSteps bounds browser actions per task.
	defaultMaxSteps = 25
	// modelRetryBound bounds consecutive unparseable model replies.
	modelRetryBound = 3
)

const systemPrompt = `You are a web-browsing agent operating a real browser. You are given a
task and, when available, prior operating knowledge for the site.

On every turn you receive the current page state: URL, title, and the
visible interactive elements. Reply with exactly one JSON object and
nothing else:

{
  "action": "navigate|click|fill|select|wait|extract|done",
  "target": "element label, or URL for navigate",
  "value": "text to type or option to pick, when relevant",
  "reason": "one short sentence",
  "summary": "for done only: what was accomplished"
}

Rules:
- Refer to elements by their visible label, never by CSS selector.
- Use "extract" to read page text into your working memory.
- Use "done" when the task is complete; put the outcome in summary.
- If the task cannot be completed, use "done" and say so in summary.`

// action is the model's per-turn decision.
type action struct {
	Action  string `json:"action"`
	Target  string `json:"target"`
	Value   string `json:"value,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// mutating actions are the ones the safe-mode gate inspects.
var mutatingActions = map[string]bool{
	"click":  true,
	"fill":   true,
	"select": true,
}

// driver is the browser surface the loop acts through.
// *browser.Handle is the production implementation.
type driver interface {
	Navigate(url string) error
	Click(target string) error
	Fill(label, value string) error
	SelectOption(label, option string) error
	WaitVisible(target string) error
	ExtractText() (string, error)
	Observe() (*browser.PageState, error)
}

// Agent drives one task. Build a fresh one per task; it keeps the
// conversation for the duration of that task only.
type Agent struct {
	handle   driver
	provider llm.Provider
	gate     *session.Gate
	logger   *logging.Logger
	maxSteps int
}

// Option configures an agent.
type Option func(*Agent)

// WithMaxSteps overrides the per-task action budget.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// New builds a task agent over the session's browser handle.
func New(h *browser.Handle, provider llm.Provider, gate *session.Gate, opts ...Option) *Agent {
	logger, _ := logging.NewLogger("agent")
	a := &Agent{
		handle:   h,
		provider: provider,
		gate:     gate,
		logger:   logger,
		maxSteps: defaultMaxSteps,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Factory adapts New to the session's per-task constructor signature.
func Factory(opts ...Option) session.AgentFactory {
	return func(h *browser.Handle, provider llm.Provider, gate *session.Gate) session.Agent {
		return New(h, provider, gate, opts...)
	}
}

// Execute runs the loop until done, blocked, out of budget, or the
// context is canceled.
func (a *Agent) Execute(ctx context.Context, task string, payload *wisdom.Payload) (*session.TaskResult, error) {
	defer func() {
		if a.logger != nil {
			a.logger.Close()
		}
	}()

	conversation := []*llm.Message{
		llm.NewSystemMessage(a.buildSystemPrompt(payload)),
		llm.NewUserMessage("Task: " + task),
	}

	var extracted []string
	steps := 0

	for steps < a.maxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conversation = append(conversation, llm.NewUserMessage(a.observe()))

		act, reply, err := a.nextAction(ctx, conversation)
		if err != nil {
			return nil, err
		}
		conversation = append(conversation, llm.NewAssistantMessage(reply))
		a.logf("step %d: %s target=%q reason=%q", steps+1, act.Action, act.Target, act.Reason)

		if act.Action == "done" {
			return &session.TaskResult{
				Status:    session.StatusSuccess,
				Summary:   act.Summary,
				Extracted: strings.Join(extracted, "\n\n"),
				Steps:     steps,
			}, nil
		}

		if mutatingActions[act.Action] && !a.gate.Allows(act.Action+" "+act.Reason, act.Target) {
			a.logf("safe mode withheld: %s on %q", act.Action, act.Target)
			return &session.TaskResult{
				Status:        session.StatusBlocked,
				Summary:       fmt.Sprintf("stopped before %s on %q; awaiting confirmation", act.Action, act.Target),
				Extracted:     strings.Join(extracted, "\n\n"),
				Steps:         steps,
				BlockedAction: act.Action,
				BlockedTarget: act.Target,
			}, nil
		}

		outcome := a.perform(ctx, act, &extracted)
		steps++
		conversation = append(conversation, llm.NewUserMessage(outcome))
	}

	return &session.TaskResult{
		Status:    session.StatusFailure,
		Summary:   fmt.Sprintf("step budget of %d exhausted before completion", a.maxSteps),
		Extracted: strings.Join(extracted, "\n\n"),
		Steps:     steps,
	}, nil
}

func (a *Agent) buildSystemPrompt(payload *wisdom.Payload) string {
	if payload == nil {
		return systemPrompt
	}
	return systemPrompt + "\n\nPrior operating knowledge for this site:\n\n" + payload.Text()
}

func (a *Agent) observe() string {
	state, err := a.handle.Observe()
	if err != nil {
		return fmt.Sprintf("Page observation failed: %v", err)
	}
	return browser.FormatState(state)
}

// nextAction asks the model for its decision, retrying a bounded
// number of times when the reply is not a parseable action. Each
// rejected reply stays in the conversation so the model can see what
// it got wrong.
func (a *Agent) nextAction(ctx context.Context, conversation []*llm.Message) (*action, string, error) {
	var lastErr error
	for attempt := 1; attempt <= modelRetryBound; attempt++ {
		resp, err := a.provider.Complete(ctx, conversation)
		if err != nil {
			return nil, "", fmt.Errorf("agent: model call: %w", err)
		}
		act, err := parseAction(resp.Content)
		if err == nil {
			return act, resp.Content, nil
		}
		lastErr = err
		conversation = append(conversation,
			llm.NewAssistantMessage(resp.Content),
			llm.NewUserMessage(fmt.Sprintf("That reply was not usable: %v. Respond with exactly one JSON action object.", err)),
		)
	}
	return nil, "", fmt.Errorf("agent: no valid action after %d attempts: %w", modelRetryBound, lastErr)
}

func parseAction(text string) (*action, error) {
	raw, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var act action
	if err := json.Unmarshal(raw, &act); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	switch act.Action {
	case "navigate", "click", "fill", "select", "wait", "extract", "done":
	default:
		return nil, fmt.Errorf("unknown action %q", act.Action)
	}
	if act.Action != "done" && act.Action != "wait" && act.Action != "extract" && act.Target == "" {
		return nil, fmt.Errorf("action %q requires a target", act.Action)
	}
	return &act, nil
}

// perform runs one primitive and reports the outcome back into the
// conversation. Primitive failures are recoverable: the model sees the
// error and picks another approach.
func (a *Agent) perform(ctx context.Context, act *action, extracted *[]string) string {
	var err error
	switch act.Action {
	case "navigate":
		err = a.handle.Navigate(act.Target)
	case "click":
		err = a.handle.Click(act.Target)
	case "fill":
		err = a.handle.Fill(act.Target, act.Value)
	case "select":
		err = a.handle.SelectOption(act.Target, act.Value)
	case "wait":
		err = a.wait(ctx, act)
	case "extract":
		var text string
		text, err = a.handle.ExtractText()
		if err == nil {
			*extracted = append(*extracted, text)
			return "Extracted page text:\n" + text
		}
	}
	if err != nil {
		a.logf("primitive %s failed: %v", act.Action, err)
		return fmt.Sprintf("Action %s on %q failed: %v", act.Action, act.Target, err)
	}
	return fmt.Sprintf("Action %s on %q succeeded.", act.Action, act.Target)
}

// wait pauses for the element to appear, or for a fixed interval when
// no target is named.
func (a *Agent) wait(ctx context.Context, act *action) error {
	if act.Target != "" {
		return a.handle.WaitVisible(act.Target)
	}
	select {
	case <-time.After(2 * time.Second):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) logf(format string, v ...interface{}) {
	if a.logger != nil {
		a.logger.Infof(format, v...)
	}
}
