package recording

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WorkflowExport is a structured-workflow export: a JSON document
// produced by an external recorder whose step vocabulary differs from
// the canonical one. Only the fields the normalizer consumes are
// declared; the rest of the export is ignored.
type WorkflowExport struct {
	Name  string         `json:"name"`
	Steps []workflowStep `json:"steps"`
}

type workflowStep struct {
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	AriaLabel   string  `json:"ariaLabel"`
	Placeholder string  `json:"placeholder"`
	Value       string  `json:"value"`
	TimeoutMS   int     `json:"timeoutMs"`
	Timestamp   int64   `json:"timestamp"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Screenshot  string  `json:"screenshot"`
}

// workflowKinds maps the export vocabulary onto the canonical set.
var workflowKinds = map[string]Kind{
	"navigation":    KindNavigate,
	"navigate":      KindNavigate,
	"goto":          KindNavigate,
	"click":         KindClick,
	"dblclick":      KindClick,
	"input":         KindType,
	"type":          KindType,
	"fill":          KindType,
	"select_change": KindSelect,
	"select":        KindSelect,
	"wait":          KindWait,
	"extract":       KindExtract,
	"extract_text":  KindExtract,
}

// ParseWorkflowExport decodes raw export JSON. The export may nest its
// step list under "workflow" or "definition"; both shapes are accepted.
func ParseWorkflowExport(raw []byte) (*WorkflowExport, error) {
	var export WorkflowExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("workflow export is not valid JSON: %v", err)}
	}
	if len(export.Steps) > 0 {
		return &export, nil
	}
	var nested struct {
		Workflow   *WorkflowExport `json:"workflow"`
		Definition *WorkflowExport `json:"definition"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.Workflow != nil && len(nested.Workflow.Steps) > 0 {
			return nested.Workflow, nil
		}
		if nested.Definition != nil && len(nested.Definition.Steps) > 0 {
			return nested.Definition, nil
		}
	}
	return nil, &FormatError{Reason: "workflow export contains no steps"}
}

// normalizeWorkflow maps a workflow export onto the canonical step
// sequence. Coordinate-only entries (a click with nothing but x/y) are
// dropped with a warning rather than failing the document; an entry
// whose type is outside the known vocabulary fails the whole document.
func normalizeWorkflow(topic string, export *WorkflowExport) (*RawStepsDocument, []Warning, error) {
	if topic == "" {
		return nil, nil, &FormatError{Reason: "missing topic"}
	}
	var steps []RawStep
	var warnings []Warning
	for i, ws := range export.Steps {
		kind, ok := workflowKinds[strings.ToLower(strings.TrimSpace(ws.Type))]
		if !ok {
			if isIgnorableWorkflowType(ws.Type) {
				warnings = append(warnings, Warning{Index: i, Reason: fmt.Sprintf("non-semantic entry %q", ws.Type)})
				continue
			}
			return nil, warnings, &FormatError{Reason: fmt.Sprintf("step %d has unrecognized action kind %q", i, ws.Type)}
		}

		target := firstNonEmpty(ws.Text, ws.AriaLabel, ws.Label, ws.Placeholder)
		if kind == KindClick && target == "" && ws.URL == "" {
			// A click described only by coordinates carries no
			// transferable semantics.
			warnings = append(warnings, Warning{Index: i, Reason: "coordinate-only click has no semantic target"})
			continue
		}
		if kind == KindNavigate && ws.URL == "" {
			warnings = append(warnings, Warning{Index: i, Reason: "navigation without a URL"})
			continue
		}

		step := RawStep{
			Index:      len(steps),
			Kind:       kind,
			Target:     normalizeText(target),
			URL:        strings.TrimSpace(ws.URL),
			Value:      previewValue(ws.Value, maxValueLen),
			WaitMS:     ws.TimeoutMS,
			Screenshot: ws.Screenshot,
		}
		if ws.Timestamp > 0 {
			ts := time.UnixMilli(ws.Timestamp).UTC()
			step.Timestamp = &ts
		}
		steps = append(steps, step)
	}

	doc := &RawStepsDocument{
		Topic:     topic,
		Source:    "workflow-export",
		CreatedAt: time.Now().UTC(),
		Steps:     steps,
	}
	doc.StartURL = doc.FirstNavigateURL()
	if err := doc.Validate(); err != nil {
		return nil, warnings, err
	}
	return doc, warnings, nil
}

// isIgnorableWorkflowType lists export entry types that carry no
// replayable action: scrolls, pointer moves, key chords and the
// recorder's own bookkeeping markers.
func isIgnorableWorkflowType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "scroll", "mousemove", "mouse_move", "key_press", "keypress", "marker", "screenshot":
		return true
	}
	return false
}
