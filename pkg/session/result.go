// Package session runs an interactive sequence of tasks against a
// single persistent browser. The browser and model provider live for
// the whole session; the executing agent and its instruction payload
// are rebuilt for every task.
package session

import "fmt"

// Status is the terminal outcome of one task.
type Status string

const (
	// StatusSuccess means the agent completed the task.
	StatusSuccess Status = "success"
	// StatusFailure means the agent gave up or exhausted its step budget.
	StatusFailure Status = "failure"
	// StatusBlocked means safe mode stopped the agent at a destructive
	// action; the session is waiting for the operator's next instruction.
	StatusBlocked Status = "blocked-awaiting-confirmation"
)

// TaskResult reports the outcome of a single submitted task.
type TaskResult struct {
	Status  Status `json:"status"`
	Summary string `json:"summary"`
	// Extracted holds any text the agent pulled from the page while
	// completing the task.
	Extracted string `json:"extracted,omitempty"`
	// Steps is the number of browser actions the agent performed.
	Steps int `json:"steps"`
	// BlockedAction and BlockedTarget identify the withheld action when
	// Status is StatusBlocked.
	BlockedAction string `json:"blocked_action,omitempty"`
	BlockedTarget string `json:"blocked_target,omitempty"`
}

// TaskExecutionError wraps a failure confined to one task. The session
// survives it and accepts the next task.
type TaskExecutionError struct {
	Task string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("session: task %q failed: %v", e.Task, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// SessionFatalError wraps a failure of session-scoped infrastructure.
// After one of these the session is unusable and must be closed.
type SessionFatalError struct {
	Stage string
	Err   error
}

func (e *SessionFatalError) Error() string {
	return fmt.Sprintf("session: fatal during %s: %v", e.Stage, e.Err)
}

func (e *SessionFatalError) Unwrap() error { return e.Err }
