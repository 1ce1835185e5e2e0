package recording

import (
	"fmt"
	"strings"
	"time"
)

// LiveEvent is one event from the semantic live-capture stream. The
// recorder already speaks in canonical kinds, so normalization is a
// validation pass plus re-indexing rather than a vocabulary mapping.
type LiveEvent struct {
	Action     string    `json:"action"`
	Target     string    `json:"target"`
	URL        string    `json:"url,omitempty"`
	Value      string    `json:"value,omitempty"`
	WaitMS     int       `json:"wait_ms,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// LiveCapture is the full output of one live recording run.
type LiveCapture struct {
	Topic    string      `json:"topic"`
	StartURL string      `json:"start_url,omitempty"`
	Events   []LiveEvent `json:"events"`
}

func normalizeLive(capture *LiveCapture) (*RawStepsDocument, []Warning, error) {
	if capture.Topic == "" {
		return nil, nil, &FormatError{Reason: "missing topic"}
	}
	var steps []RawStep
	var warnings []Warning
	for i, ev := range capture.Events {
		kind := Kind(strings.ToLower(strings.TrimSpace(ev.Action)))
		if !knownKinds[kind] {
			return nil, warnings, &FormatError{Reason: fmt.Sprintf("event %d has unrecognized action kind %q", i, ev.Action)}
		}
		if kind != KindWait && ev.Target == "" && ev.URL == "" {
			warnings = append(warnings, Warning{Index: i, Reason: fmt.Sprintf("%s event without a target description", kind)})
			continue
		}
		step := RawStep{
			Index:      len(steps),
			Kind:       kind,
			Target:     normalizeText(ev.Target),
			URL:        strings.TrimSpace(ev.URL),
			Value:      previewValue(ev.Value, maxValueLen),
			WaitMS:     ev.WaitMS,
			Screenshot: ev.Screenshot,
		}
		if !ev.CapturedAt.IsZero() {
			ts := ev.CapturedAt.UTC()
			step.Timestamp = &ts
		}
		steps = append(steps, step)
	}

	doc := &RawStepsDocument{
		Topic:     capture.Topic,
		Source:    "live-capture",
		StartURL:  capture.StartURL,
		CreatedAt: time.Now().UTC(),
		Steps:     steps,
	}
	if doc.StartURL == "" {
		doc.StartURL = doc.FirstNavigateURL()
	}
	if err := doc.Validate(); err != nil {
		return nil, warnings, err
	}
	return doc, warnings, nil
}
