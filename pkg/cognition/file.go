package cognition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Path returns the on-disk location of a topic's cognition document
// under dir.
func Path(dir, topic string) string {
	return filepath.Join(dir, topic+".cognition.json")
}

// Write persists a validated record atomically via a temporary file
// and rename. A record that fails validation is never written.
func Write(path string, r *RichCognitionRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("cognition: marshal record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cognition: create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("cognition: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cognition: atomic rename %s: %w", path, err)
	}
	return nil
}

// Load reads a cognition document and re-validates it.
func Load(path string) (*RichCognitionRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cognition: read %s: %w", path, err)
	}
	var r RichCognitionRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, &ValidationError{Field: "document", Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
