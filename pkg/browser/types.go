// Package browser owns the persistent browser-automation resource: a
// playwright runtime plus one long-lived browser handle whose
// operations are addressed semantically (visible text, labels, roles),
// never by raw selector.
package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Handle is the persistent automation resource an execution session
// owns for its whole lifetime. It bundles a browser, an isolated
// context, and the active page.
type Handle struct {
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	Headless  bool
	CreatedAt time.Time
}

// LaunchOptions configures the single handle a manager opens.
type LaunchOptions struct {
	Headless bool

	// StorageStatePath attaches previously saved login state.
	StorageStatePath string

	// Viewport dimensions; zero values take the defaults.
	ViewportWidth  int
	ViewportHeight int

	// TimeoutMS is the default timeout for page operations.
	TimeoutMS float64
}

// Element is one interactive control observed on a page.
type Element struct {
	Role  string `json:"role"`
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	Href  string `json:"href,omitempty"`
}

// PageState is a compact semantic snapshot of the live page, suitable
// for embedding into a model prompt.
type PageState struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
	defaultTimeoutMS      = 30000.0
	maxObservedElements   = 60
)
