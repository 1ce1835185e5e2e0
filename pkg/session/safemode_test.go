package session

import "testing"

func TestGateDisabledAllowsEverything(t *testing.T) {
	g := NewGate(false)
	if !g.Allows("click", "Delete account") {
		t.Error("disabled gate must allow destructive actions")
	}
	if g.Enabled() {
		t.Error("Enabled() = true for a disabled gate")
	}
}

func TestGateClassification(t *testing.T) {
	g := NewGate(true)

	tests := []struct {
		name   string
		action string
		target string
		allow  bool
	}{
		{name: "plain click", action: "click", target: "Next page", allow: true},
		{name: "navigation", action: "navigate", target: "https://example.com/reports", allow: true},
		{name: "fill a field", action: "fill", target: "Search", allow: true},
		{name: "delete button", action: "click", target: "Delete repository", allow: false},
		{name: "case insensitive", action: "click", target: "DELETE ACCOUNT", allow: false},
		{name: "submit form", action: "click", target: "Submit order", allow: false},
		{name: "payment", action: "click", target: "Pay now", allow: false},
		{name: "purchase", action: "click", target: "Purchase plan", allow: false},
		{name: "confirmation", action: "click", target: "Confirm booking", allow: false},
		{name: "creation", action: "click", target: "Create project", allow: false},
		{name: "punctuation around verb", action: "click", target: `"Delete"`, allow: false},
		{name: "verb inside reason", action: "click submits the form", target: "Continue", allow: false},
		{name: "verb as substring only", action: "click", target: "Display settings", allow: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Allows(tt.action, tt.target); got != tt.allow {
				t.Errorf("Allows(%q, %q) = %v, want %v", tt.action, tt.target, got, tt.allow)
			}
		})
	}
}
