package session

import (
	"context"
	"errors"
	"sync"

	"exogram/pkg/auth"
	"exogram/pkg/browser"
	"exogram/pkg/llm"
	"exogram/pkg/logging"
	"exogram/pkg/memory"
	"exogram/pkg/wisdom"
)

// State is the session lifecycle state. Transitions are
// Idle -> Running -> AwaitingNextTask -> Running -> ... -> Closed.
type State string

const (
	StateIdle             State = "idle"
	StateRunning          State = "running"
	StateAwaitingNextTask State = "awaiting-next-task"
	StateClosed           State = "closed"
)

var (
	// ErrClosed is returned when a task is submitted to a closed session.
	ErrClosed = errors.New("session: closed")
	// ErrBusy is returned when a task is submitted while another runs.
	ErrBusy = errors.New("session: a task is already running")
)

// Agent executes one task against the shared browser handle. A fresh
// agent is built per task; agents never carry state between tasks.
type Agent interface {
	Execute(ctx context.Context, task string, payload *wisdom.Payload) (*TaskResult, error)
}

// AgentFactory builds the per-task agent over the session's persistent
// handle and provider.
type AgentFactory func(h *browser.Handle, provider llm.Provider, gate *Gate) Agent

// Runtime is the browser lifecycle the session drives.
// *browser.Manager is the production implementation.
type Runtime interface {
	Initialize() error
	Open(browser.LaunchOptions) (*browser.Handle, error)
	Handle() *browser.Handle
	Shutdown() error
}

// Session owns one persistent browser and model provider and runs
// submitted tasks against them one at a time.
type Session struct {
	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	provider llm.Provider
	store    *memory.Store
	factory  AgentFactory
	browsers Runtime
	gate     *Gate
	headless bool
	auth     *auth.Manager
	logger   *logging.Logger
}

// Option configures a session.
type Option func(*Session)

// WithSafeMode turns the destructive-action gate on or off. Default on.
func WithSafeMode(on bool) Option {
	return func(s *Session) { s.gate = NewGate(on) }
}

// WithHeadless controls browser visibility. Default headless.
func WithHeadless(headless bool) Option {
	return func(s *Session) { s.headless = headless }
}

// WithAuth attaches a stored-credential manager. When set, the browser
// context is seeded from the saved state for the first task's site and
// the state is saved back after each task.
func WithAuth(m *auth.Manager) Option {
	return func(s *Session) { s.auth = m }
}

// WithRuntime substitutes the browser runtime, mainly for tests.
func WithRuntime(rt Runtime) Option {
	return func(s *Session) { s.browsers = rt }
}

// New creates an idle session. No browser resources are allocated
// until the first task is submitted.
func New(provider llm.Provider, store *memory.Store, factory AgentFactory, opts ...Option) *Session {
	logger, _ := logging.NewLogger("session")
	s := &Session{
		state:    StateIdle,
		provider: provider,
		store:    store,
		factory:  factory,
		browsers: browser.NewManager(),
		gate:     NewGate(true),
		headless: true,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit runs one task. The topic selects which stored cognition to
// recall; the task text is also used as a relevance query. The first
// Submit allocates the browser; later Submits reuse it. A task failure
// leaves the session usable for the next task.
func (s *Session) Submit(ctx context.Context, topic, task string) (*TaskResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrClosed
	case StateRunning:
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = StateRunning
	taskCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateAwaitingNextTask
		}
		s.cancel = nil
		s.mu.Unlock()
	}()

	payload := s.recall(topic, task)

	handle, err := s.ensureHandle(payload)
	if err != nil {
		s.close()
		return nil, &SessionFatalError{Stage: "browser setup", Err: err}
	}

	agent := s.factory(handle, s.provider, s.gate)
	s.logf("task start: topic=%q task=%q", topic, task)
	result, err := agent.Execute(taskCtx, task, payload)
	if err != nil {
		s.logf("task failed: %v", err)
		return nil, &TaskExecutionError{Task: task, Err: err}
	}

	s.saveAuthState(handle)
	s.logf("task done: status=%s steps=%d", result.Status, result.Steps)
	return result, nil
}

// Interrupt cancels the in-flight task, if any. The session itself
// stays open and accepts the next task.
func (s *Session) Interrupt() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close releases the browser and ends the session. Close is
// idempotent; a closed session rejects all further tasks.
func (s *Session) Close() error {
	s.Interrupt()
	return s.close()
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	err := s.browsers.Shutdown()
	if s.logger != nil {
		s.logger.Close()
	}
	return err
}

// recall fetches the best stored cognition for the task and builds a
// fresh instruction payload from it. A topic with no stored cognition
// yields a nil payload and the task runs with no prior knowledge.
func (s *Session) recall(topic, task string) *wisdom.Payload {
	if s.store == nil {
		return nil
	}
	hits, err := s.store.Retrieve(topic, task, 1)
	if err != nil {
		s.logf("memory retrieval failed: %v", err)
		return nil
	}
	if len(hits) == 0 || hits[0].Record.Rich == nil {
		return nil
	}
	return wisdom.Build(hits[0].Record.Rich, s.gate.Enabled())
}

func (s *Session) ensureHandle(payload *wisdom.Payload) (*browser.Handle, error) {
	if h := s.browsers.Handle(); h != nil {
		return h, nil
	}
	if err := s.browsers.Initialize(); err != nil {
		return nil, err
	}
	opts := browser.LaunchOptions{Headless: s.headless}
	if s.auth != nil && payload != nil && payload.StartURL != "" {
		path, err := s.auth.StorageStatePath(payload.StartURL)
		if err == nil {
			opts.StorageStatePath = path
		} else if !errors.Is(err, auth.ErrNotFound) {
			s.logf("auth state unavailable: %v", err)
		}
	}
	return s.browsers.Open(opts)
}

// saveAuthState persists the browser's cookies and local storage for
// the page's current site so later sessions skip the login.
func (s *Session) saveAuthState(h *browser.Handle) {
	if s.auth == nil || h == nil {
		return
	}
	blob, err := h.SaveStorageState()
	if err != nil {
		s.logf("save storage state: %v", err)
		return
	}
	if err := s.auth.SaveForURL(h.Page.URL(), blob); err != nil {
		s.logf("save auth state: %v", err)
	}
}

func (s *Session) logf(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(format, v...)
	}
}
