// Package cognition defines the structured cognition record distilled
// from a demonstration, its validation contract, and its on-disk form.
package cognition

import (
	"fmt"
	"time"
)

// WebsiteInfo describes the system the demonstration ran against.
type WebsiteInfo struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// TaskInfo summarizes what the demonstrated task accomplished.
type TaskInfo struct {
	Summary    string `json:"summary"`
	Goal       string `json:"goal"`
	StepsCount int    `json:"steps_count"`
}

// OperationPhase is one ordered phase of the demonstrated flow.
type OperationPhase struct {
	Phase       string   `json:"phase"`
	Description string   `json:"description"`
	KeyActions  []string `json:"key_actions,omitempty"`
}

// KeyElement is a UI element worth knowing about on the target site,
// identified semantically rather than by selector.
type KeyElement struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Usage string `json:"usage"`
}

// OperationKnowledge is the reusable knowledge extracted from the run.
type OperationKnowledge struct {
	NavigationPattern string   `json:"navigation_pattern"`
	FormTips          []string `json:"form_filling_tips,omitempty"`
	Workflows         []string `json:"common_workflows,omitempty"`
	Precautions       []string `json:"precautions,omitempty"`
	AntiPatterns      []string `json:"anti_patterns,omitempty"`
}

// Meta is stamped by the distiller, never by the model.
type Meta struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	StepsCount int       `json:"steps_count"`
	StartURL   string    `json:"start_url,omitempty"`
}

// RichCognitionRecord is the full cognition document for one
// demonstrated task. It is produced from exactly one recording and is
// only considered usable after Validate passes.
type RichCognitionRecord struct {
	Website          WebsiteInfo        `json:"website"`
	Task             TaskInfo           `json:"task"`
	OperationFlow    []OperationPhase   `json:"operation_flow"`
	KeyElements      []KeyElement       `json:"key_elements,omitempty"`
	Knowledge        OperationKnowledge `json:"operation_knowledge"`
	ReplicationGuide string             `json:"replication_guide,omitempty"`
	Meta             Meta               `json:"_meta"`
}

// ValidationError reports a cognition document that does not satisfy
// the schema contract. It is the unit the distillation retry loop
// feeds back to the model.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cognition: invalid %s: %s", e.Field, e.Reason)
}

// Validate enforces the schema contract: required sections present,
// operation flow non-empty, navigation pattern non-empty.
func (r *RichCognitionRecord) Validate() error {
	if r.Website.Name == "" {
		return &ValidationError{Field: "website.name", Reason: "must be non-empty"}
	}
	if r.Website.Description == "" {
		return &ValidationError{Field: "website.description", Reason: "must be non-empty"}
	}
	if r.Task.Summary == "" {
		return &ValidationError{Field: "task.summary", Reason: "must be non-empty"}
	}
	if len(r.OperationFlow) == 0 {
		return &ValidationError{Field: "operation_flow", Reason: "must contain at least one phase"}
	}
	for i, p := range r.OperationFlow {
		if p.Phase == "" || p.Description == "" {
			return &ValidationError{Field: fmt.Sprintf("operation_flow[%d]", i), Reason: "phase and description must be non-empty"}
		}
	}
	if r.Knowledge.NavigationPattern == "" {
		return &ValidationError{Field: "operation_knowledge.navigation_pattern", Reason: "must be non-empty"}
	}
	for i, e := range r.KeyElements {
		if e.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("key_elements[%d].name", i), Reason: "must be non-empty"}
		}
	}
	return nil
}

// StartURL returns the best entry URL the record knows about.
func (r *RichCognitionRecord) StartURL() string {
	if r.Website.URL != "" {
		return r.Website.URL
	}
	return r.Meta.StartURL
}
