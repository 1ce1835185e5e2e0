package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"exogram/pkg/logging"
)

// Store is the append-only line-delimited JSON log of cognition
// records. Appends are single atomic writes, so independent sessions
// may share one store file without coordination; every read rescans
// the full log, which deliberately bounds the store to
// small-to-moderate scale.
type Store struct {
	path   string
	logger *logging.Logger
}

// NewStore opens (creating if necessary) the store at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, &StorageIOError{Op: "init", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, &StorageIOError{Op: "init", Path: path, Err: err}
	}
	_ = f.Close()
	logger, _ := logging.NewLogger("memory")
	return &Store{path: path, logger: logger}, nil
}

// Path returns the store file location.
func (s *Store) Path() string { return s.path }

// Append writes one record as a single self-contained line, durable
// before returning. The line is written with one write call in append
// mode, so concurrent appends from independent sessions never
// interleave or truncate each other.
func (s *Store) Append(record *CognitionRecord) error {
	if record.Topic == "" {
		return &StorageIOError{Op: "append", Path: s.path, Err: fmt.Errorf("record has no topic")}
	}
	b, err := json.Marshal(record)
	if err != nil {
		return &StorageIOError{Op: "append", Path: s.path, Err: err}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return &StorageIOError{Op: "append", Path: s.path, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		return &StorageIOError{Op: "append", Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &StorageIOError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

// ListAll returns every record in append order. Corrupt lines are
// skipped and surfaced as warnings, never fatal to the read.
func (s *Store) ListAll() ([]*CognitionRecord, []Warning, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, &StorageIOError{Op: "read", Path: s.path, Err: err}
	}
	defer f.Close()

	var records []*CognitionRecord
	var warnings []Warning
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record CognitionRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			w := Warning{Line: lineNo, Reason: err.Error()}
			warnings = append(warnings, w)
			s.logger.Warnf("store %s: %s", s.path, w)
			continue
		}
		records = append(records, &record)
	}
	if err := scanner.Err(); err != nil {
		return records, warnings, &StorageIOError{Op: "read", Path: s.path, Err: err}
	}
	return records, warnings, nil
}

// Retrieve ranks stored records against a topic and free-text query.
// Exact topic matches rank first; remaining candidates are scored by
// keyword overlap with the record's textual fields plus a mild recency
// boost; equal scores break toward the most recent record. With no
// topic and no query, every record is returned, most recent first.
func (s *Store) Retrieve(topic, query string, limit int) ([]Hit, error) {
	records, _, err := s.ListAll()
	if err != nil {
		return nil, err
	}

	tokens := tokenize(query)
	var hits []Hit
	for _, r := range records {
		topicMatch := topic != "" && r.Topic == topic
		if topic != "" && !topicMatch {
			continue
		}
		score := scoreRecord(r, tokens)
		if topicMatch {
			score += exactTopicBoost
		}
		if topic == "" && query != "" && score <= 0 {
			continue
		}
		hits = append(hits, Hit{Record: r, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.CreatedAt.After(hits[j].Record.CreatedAt)
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

const exactTopicBoost = 100.0

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func scoreRecord(r *CognitionRecord, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	blob := r.textBlob()
	var score float64
	for _, t := range tokens {
		if strings.Contains(blob, t) {
			score++
		}
	}
	if score == 0 {
		return 0
	}
	// Light recency shaping with a 30-day half-life; keyword overlap
	// still dominates.
	ageDays := time.Since(r.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := 1.0 / (1.0 + ageDays/30.0)
	return score * (0.7 + 0.3*recency)
}
