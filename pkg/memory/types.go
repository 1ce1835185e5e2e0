// Package memory is the durable, append-only long-term store of
// cognition records, one self-contained JSON line per record, with a
// small-scale rescan-based retrieval policy.
package memory

import (
	"fmt"
	"strings"
	"time"

	"exogram/pkg/cognition"
)

// CognitionRecord is the persisted, memory-store form of a distilled
// demonstration. Records are immutable once appended; identity is
// (Topic, CreatedAt).
type CognitionRecord struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags,omitempty"`
	Summary   string    `json:"summary"`

	// Flattened reusable knowledge, kept alongside the embedded rich
	// record so retrieval scoring never needs to walk nested structure.
	KeyPathFeatures   []string `json:"key_path_features,omitempty"`
	PreferenceRules   []string `json:"preference_rules,omitempty"`
	ExceptionHandling []string `json:"exception_handling,omitempty"`
	AntiPatterns      []string `json:"anti_patterns,omitempty"`

	Rich *cognition.RichCognitionRecord `json:"rich,omitempty"`
}

// FromRich flattens a validated cognition record into its persisted
// form.
func FromRich(r *cognition.RichCognitionRecord) *CognitionRecord {
	features := make([]string, 0, len(r.KeyElements))
	for _, e := range r.KeyElements {
		features = append(features, e.Name)
	}
	summary := r.Task.Goal
	if summary == "" {
		summary = r.Website.Description
	}
	return &CognitionRecord{
		ID:                r.Meta.ID,
		Topic:             r.Meta.Topic,
		CreatedAt:         r.Meta.CreatedAt,
		Tags:              []string{r.Website.Category},
		Summary:           summary,
		KeyPathFeatures:   features,
		PreferenceRules:   r.Knowledge.FormTips,
		ExceptionHandling: r.Knowledge.Precautions,
		AntiPatterns:      r.Knowledge.AntiPatterns,
		Rich:              r,
	}
}

// textBlob concatenates the record's searchable fields, lowercased.
func (r *CognitionRecord) textBlob() string {
	parts := []string{
		r.Topic,
		r.Summary,
		strings.Join(r.Tags, " "),
		strings.Join(r.KeyPathFeatures, " "),
		strings.Join(r.PreferenceRules, " "),
		strings.Join(r.ExceptionHandling, " "),
		strings.Join(r.AntiPatterns, " "),
	}
	if r.Rich != nil {
		parts = append(parts, r.Rich.Website.Description, r.Rich.Knowledge.NavigationPattern)
		for _, p := range r.Rich.OperationFlow {
			parts = append(parts, p.Description)
		}
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// Hit is one retrieval result.
type Hit struct {
	Record *CognitionRecord
	Score  float64
}

// StorageIOError reports a durable write that did not complete; the
// operation was not applied.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("memory: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

// Warning reports a store line that could not be parsed and was
// skipped.
type Warning struct {
	Line   int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d skipped: %s", w.Line, w.Reason)
}
