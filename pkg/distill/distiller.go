// Package distill turns one normalized step sequence into a validated
// structured cognition record via a single language-model call per
// attempt, with bounded schema-repair retries.
package distill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exogram/pkg/cognition"
	"exogram/pkg/llm"
	"exogram/pkg/logging"
	"exogram/pkg/recording"
)

// DefaultRetryBound is the number of model attempts before the engine
// gives up.
const DefaultRetryBound = 3

// DistillationError reports retry exhaustion. No artifact has been
// written when it is returned.
type DistillationError struct {
	Topic    string
	Attempts int
	Cause    error
}

func (e *DistillationError) Error() string {
	return fmt.Sprintf("distill: topic %q failed after %d attempts: %v", e.Topic, e.Attempts, e.Cause)
}

func (e *DistillationError) Unwrap() error { return e.Cause }

// Distiller drives the distillation loop against an llm.Provider.
type Distiller struct {
	provider   llm.Provider
	retryBound int
	logger     *logging.Logger
}

// Option configures a Distiller.
type Option func(*Distiller)

// WithRetryBound overrides the attempt bound.
func WithRetryBound(n int) Option {
	return func(d *Distiller) {
		if n > 0 {
			d.retryBound = n
		}
	}
}

// New creates a Distiller using the given provider.
func New(provider llm.Provider, opts ...Option) *Distiller {
	logger, _ := logging.NewLogger("distill")
	d := &Distiller{
		provider:   provider,
		retryBound: DefaultRetryBound,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distill converts one recording into a validated cognition record.
// Each attempt issues exactly one model call carrying the full ordered
// step sequence; no conversation state survives between documents.
// Validation failures feed a corrective follow-up prompt into the next
// attempt. Output content is not deterministic across calls; only
// schema validity is guaranteed.
func (d *Distiller) Distill(ctx context.Context, doc *recording.RawStepsDocument) (*cognition.RichCognitionRecord, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	messages := []*llm.Message{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(buildUserPrompt(doc)),
	}

	var lastErr error
	for attempt := 1; attempt <= d.retryBound; attempt++ {
		resp, err := d.provider.Complete(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			d.logger.Warnf("attempt %d/%d: model call failed: %v", attempt, d.retryBound, err)
			continue
		}

		record, err := d.parseAndValidate(doc, resp.Content)
		if err == nil {
			d.logger.Infof("topic %q distilled on attempt %d", doc.Topic, attempt)
			return record, nil
		}
		lastErr = err
		d.logger.Warnf("attempt %d/%d: response rejected: %v", attempt, d.retryBound, err)

		// Keep the rejected answer in the conversation so the model can
		// repair it instead of starting over.
		messages = append(messages,
			llm.NewAssistantMessage(resp.Content),
			llm.NewUserMessage(buildCorrectivePrompt(err)),
		)
	}

	return nil, &DistillationError{Topic: doc.Topic, Attempts: d.retryBound, Cause: lastErr}
}

// DistillToFile distills and writes the result atomically to path.
// On failure nothing is written.
func (d *Distiller) DistillToFile(ctx context.Context, doc *recording.RawStepsDocument, path string) (*cognition.RichCognitionRecord, error) {
	record, err := d.Distill(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := cognition.Write(path, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (d *Distiller) parseAndValidate(doc *recording.RawStepsDocument, response string) (*cognition.RichCognitionRecord, error) {
	raw, err := llm.ExtractJSONObject(response)
	if err != nil {
		return nil, &cognition.ValidationError{Field: "response", Reason: "no JSON object found"}
	}

	var record cognition.RichCognitionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, &cognition.ValidationError{Field: "response", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	// Meta is authoritative here; whatever the model put there is
	// discarded.
	startURL := doc.StartURL
	if startURL == "" {
		startURL = doc.FirstNavigateURL()
	}
	if record.Website.URL == "" {
		record.Website.URL = startURL
	}
	record.Task.StepsCount = len(doc.Steps)
	record.Meta = cognition.Meta{
		ID:         uuid.New().String(),
		Topic:      doc.Topic,
		CreatedAt:  time.Now().UTC(),
		Source:     doc.Source,
		StepsCount: len(doc.Steps),
		StartURL:   startURL,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return &record, nil
}
