package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxValueLen = 80

// Source is a capture source awaiting normalization. Exactly one
// variant must be set.
type Source struct {
	Topic    string
	Workflow *WorkflowExport
	Live     *LiveCapture
}

// Normalize converts a capture source into the canonical step
// sequence. Recoverable problems (entries dropped during mapping) are
// reported as warnings; structural problems fail with *FormatError.
// Step order is preserved from the capture, always.
func Normalize(src Source) (*RawStepsDocument, []Warning, error) {
	switch {
	case src.Workflow != nil:
		return normalizeWorkflow(src.Topic, src.Workflow)
	case src.Live != nil:
		live := *src.Live
		if src.Topic != "" {
			live.Topic = src.Topic
		}
		return normalizeLive(&live)
	default:
		return nil, nil, &FormatError{Reason: "no capture source provided"}
	}
}

// StepsPath returns the on-disk location of a topic's normalized
// recording under dir.
func StepsPath(dir, topic string) string {
	return filepath.Join(dir, topic+".raw_steps.json")
}

// WriteDocument persists a validated document atomically via a
// temporary file and rename, so a concurrent reader never sees a
// half-written recording.
func WriteDocument(path string, doc *RawStepsDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("recording: marshal document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("recording: create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("recording: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("recording: atomic rename %s: %w", path, err)
	}
	return nil
}

// LoadDocument reads a previously written recording and re-validates
// it; the file is the source of truth once written.
func LoadDocument(path string) (*RawStepsDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recording: read %s: %w", path, err)
	}
	var doc RawStepsDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("recording file %s is not valid JSON: %v", path, err)}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

var wsRE = regexp.MustCompile(`\s+`)

// normalizeText collapses runs of whitespace so captured labels
// compare and render predictably.
func normalizeText(s string) string {
	return wsRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// previewValue truncates captured input values; recorded values only
// need to convey intent, not content. The cut lands on a rune boundary
// so multibyte values stay valid UTF-8.
func previewValue(v string, limit int) string {
	v = normalizeText(v)
	if utf8.RuneCountInString(v) <= limit {
		return v
	}
	return string([]rune(v)[:limit]) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
