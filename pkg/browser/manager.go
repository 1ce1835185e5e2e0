package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Manager owns the playwright runtime and the one persistent handle a
// session works through. The handle is created once and reused across
// every task in the session; it is never recreated per task.
type Manager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	handle      *Handle
	initialized bool
}

// NewManager creates an uninitialized manager.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize installs and starts the playwright runtime. Must be
// called before Open.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("browser: install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("browser: start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

// Open launches the persistent handle. A manager holds at most one
// handle; opening twice is an error.
func (m *Manager) Open(opts LaunchOptions) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser: manager not initialized")
	}
	if m.handle != nil {
		return nil, fmt.Errorf("browser: handle already open")
	}

	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = defaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = defaultViewportHeight
	}
	if opts.TimeoutMS == 0 {
		opts.TimeoutMS = defaultTimeoutMS
	}

	b, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	}
	if opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	context, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		b.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	page.SetDefaultTimeout(opts.TimeoutMS)

	m.handle = &Handle{
		Browser:   b,
		Context:   context,
		Page:      page,
		Headless:  opts.Headless,
		CreatedAt: time.Now(),
	}
	return m.handle, nil
}

// Handle returns the open handle, or nil.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// CloseHandle closes the persistent handle, leaving the runtime up.
func (m *Manager) CloseHandle() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}
	_ = m.handle.Page.Close()
	_ = m.handle.Context.Close()
	err := m.handle.Browser.Close()
	m.handle = nil
	if err != nil {
		return fmt.Errorf("browser: close handle: %w", err)
	}
	return nil
}

// Shutdown closes the handle and stops the playwright runtime. Safe to
// call on an uninitialized manager.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.handle.Page.Close()
		m.handle.Context.Close()
		m.handle.Browser.Close()
		m.handle = nil
	}
	if m.initialized && m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			return fmt.Errorf("browser: stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}
