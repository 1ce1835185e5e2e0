// Package recording defines the canonical step schema produced by all
// capture sources and the normalizers that map heterogeneous capture
// vocabularies onto it. Steps are semantic: targets are human-readable
// descriptions, never raw selectors.
package recording

import (
	"fmt"
	"time"
)

// Kind is the canonical action vocabulary every capture source is
// normalized into.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindSelect   Kind = "select"
	KindWait     Kind = "wait"
	KindExtract  Kind = "extract"
)

// knownKinds is the closed set accepted by validation.
var knownKinds = map[Kind]bool{
	KindNavigate: true,
	KindClick:    true,
	KindType:     true,
	KindSelect:   true,
	KindWait:     true,
	KindExtract:  true,
}

// RawStep is one semantic action from a demonstration.
type RawStep struct {
	// Index is the zero-based position within the document.
	Index int `json:"idx"`

	// Kind is the canonical action kind.
	Kind Kind `json:"action"`

	// Target is a human-readable description of what was acted on
	// (visible text, label, role). Required for every kind except wait.
	Target string `json:"target,omitempty"`

	// URL is set for navigate steps and opportunistically for others.
	URL string `json:"url,omitempty"`

	// Value is the typed or selected value, possibly truncated.
	Value string `json:"value,omitempty"`

	// WaitMS is the wait duration for wait steps.
	WaitMS int `json:"wait_ms,omitempty"`

	// Timestamp is when the action was captured, if the source had one.
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Screenshot is an opaque reference to a capture artifact.
	Screenshot string `json:"screenshot,omitempty"`
}

// RawStepsDocument is the normalized form of one demonstration.
type RawStepsDocument struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	StartURL  string    `json:"start_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Steps     []RawStep `json:"steps"`
}

// FormatError reports a capture source that cannot be normalized.
// The recording is rejected as a whole.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("recording: invalid capture source: %s", e.Reason)
}

// Warning is a recoverable normalization problem. The offending entry
// is dropped and the rest of the document survives.
type Warning struct {
	Index  int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("step %d dropped: %s", w.Index, w.Reason)
}

// Validate checks document invariants: non-empty topic and steps,
// known kinds, non-empty targets (wait excluded), and non-decreasing
// timestamps in capture order.
func (d *RawStepsDocument) Validate() error {
	if d.Topic == "" {
		return &FormatError{Reason: "missing topic"}
	}
	if len(d.Steps) == 0 {
		return &FormatError{Reason: "document has no actions"}
	}
	var prev *time.Time
	for i, s := range d.Steps {
		if !knownKinds[s.Kind] {
			return &FormatError{Reason: fmt.Sprintf("step %d has unrecognized action kind %q", i, s.Kind)}
		}
		if s.Kind != KindWait && s.Target == "" && s.URL == "" {
			return &FormatError{Reason: fmt.Sprintf("step %d (%s) has no target description", i, s.Kind)}
		}
		if s.Timestamp != nil {
			if prev != nil && s.Timestamp.Before(*prev) {
				return &FormatError{Reason: fmt.Sprintf("step %d timestamp precedes step %d", i, i-1)}
			}
			prev = s.Timestamp
		}
	}
	return nil
}

// FirstNavigateURL returns the URL of the first navigate step that is
// not about:blank, or "".
func (d *RawStepsDocument) FirstNavigateURL() string {
	for _, s := range d.Steps {
		if s.Kind == KindNavigate && s.URL != "" && s.URL != "about:blank" {
			return s.URL
		}
	}
	return ""
}
