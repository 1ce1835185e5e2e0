package browser

import (
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Navigate loads url and waits for the page to settle.
func (h *Handle) Navigate(url string) error {
	if _, err := h.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return fmt.Errorf("browser: navigate to %s: %w", url, err)
	}
	return nil
}

// Click clicks the control best matching a human-readable target
// description: visible text first, then accessible button/link names.
func (h *Handle) Click(target string) error {
	locator := h.locate(target)
	if err := locator.Click(); err != nil {
		return fmt.Errorf("browser: click %q: %w", target, err)
	}
	return nil
}

// Fill types value into the input identified by its label, falling
// back to placeholder text.
func (h *Handle) Fill(label, value string) error {
	field := h.Page.GetByLabel(label).First()
	if visible, _ := field.IsVisible(); !visible {
		field = h.Page.GetByPlaceholder(label).First()
	}
	if err := field.Fill(value); err != nil {
		return fmt.Errorf("browser: fill %q: %w", label, err)
	}
	return nil
}

// SelectOption picks an option by its visible label within the select
// control identified by label.
func (h *Handle) SelectOption(label, option string) error {
	field := h.Page.GetByLabel(label).First()
	if _, err := field.SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{option},
	}); err != nil {
		return fmt.Errorf("browser: select %q in %q: %w", option, label, err)
	}
	return nil
}

// WaitVisible waits until a control matching target is visible.
func (h *Handle) WaitVisible(target string) error {
	if err := h.locate(target).WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	}); err != nil {
		return fmt.Errorf("browser: wait for %q: %w", target, err)
	}
	return nil
}

// ExtractText returns the visible text of the page body, truncated to
// a prompt-friendly length.
func (h *Handle) ExtractText() (string, error) {
	body := h.Page.Locator("body")
	text, err := body.InnerText()
	if err != nil {
		return "", fmt.Errorf("browser: extract text: %w", err)
	}
	const maxLen = 8000
	if len(text) > maxLen {
		text = text[:maxLen] + fmt.Sprintf("\n[truncated, %d characters total]", len(text))
	}
	return text, nil
}

// Observe captures a compact semantic snapshot of the current page for
// the agent to reason over.
func (h *Handle) Observe() (*PageState, error) {
	title, err := h.Page.Title()
	if err != nil {
		return nil, fmt.Errorf("browser: read title: %w", err)
	}
	content, err := h.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("browser: read page content: %w", err)
	}
	elements, err := ParsePage(content)
	if err != nil {
		return nil, err
	}
	return &PageState{
		URL:      h.Page.URL(),
		Title:    title,
		Elements: elements,
	}, nil
}

// SaveStorageState serializes the context's login state (cookies,
// local storage) into an opaque blob.
func (h *Handle) SaveStorageState() ([]byte, error) {
	state, err := h.Context.StorageState()
	if err != nil {
		return nil, fmt.Errorf("browser: read storage state: %w", err)
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("browser: marshal storage state: %w", err)
	}
	return blob, nil
}

// locate maps a semantic target description onto the most specific
// live locator: buttons and links carrying the text first, then any
// element with the visible text.
func (h *Handle) locate(target string) playwright.Locator {
	for _, sel := range []string{
		fmt.Sprintf("button:has-text(%q)", target),
		fmt.Sprintf("a:has-text(%q)", target),
		fmt.Sprintf("[role=button]:has-text(%q)", target),
	} {
		candidate := h.Page.Locator(sel).First()
		if visible, _ := candidate.IsVisible(); visible {
			return candidate
		}
	}
	return h.Page.GetByText(target).First()
}
