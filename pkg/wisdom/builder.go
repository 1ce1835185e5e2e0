// Package wisdom builds the structured instruction payload injected
// into a task's execution context from a cognition record. The build
// is a pure transform: same record and flags in, same payload out.
package wisdom

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"exogram/pkg/cognition"
)

// Payload is the ordered instruction text derived from one cognition
// record. Each task gets a freshly built payload; payloads are never
// shared between tasks.
type Payload struct {
	Topic    string
	StartURL string
	SafeMode bool
	sections []section
}

type section struct {
	title string
	body  string
}

// safeModePolicy is appended verbatim when safe mode is on. It states
// the destructive-action policy the session enforces.
const safeModePolicy = `Safe mode is active. You may navigate to and locate any control, but
you must NOT perform the final mutating step of actions that create,
delete, submit, or pay for anything. When you reach such a control,
stop and report the intended action and its target instead of
performing it.`

// Build derives the instruction payload from a cognition record.
// Sections with no content in the record are omitted entirely; no
// placeholder text is ever emitted.
func Build(record *cognition.RichCognitionRecord, safeMode bool) *Payload {
	p := &Payload{Topic: record.Meta.Topic, StartURL: record.StartURL(), SafeMode: safeMode}

	var site strings.Builder
	fmt.Fprintf(&site, "You are operating %s", record.Website.Name)
	if record.Website.Category != "" {
		fmt.Fprintf(&site, " (%s)", record.Website.Category)
	}
	site.WriteString(".")
	if record.Website.Description != "" {
		site.WriteString("\n" + record.Website.Description)
	}
	if record.Task.Goal != "" {
		fmt.Fprintf(&site, "\nDemonstrated goal: %s", record.Task.Goal)
	}
	p.add("Website context", site.String())

	if len(record.KeyElements) > 0 {
		var b strings.Builder
		for _, e := range record.KeyElements {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", e.Role, e.Name, e.Usage)
		}
		p.add("Known key UI elements", strings.TrimRight(b.String(), "\n"))
	}

	if len(record.OperationFlow) > 0 {
		var b strings.Builder
		for i, phase := range record.OperationFlow {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, phase.Phase, phase.Description)
		}
		p.add("Operation flow", strings.TrimRight(b.String(), "\n"))
	}

	var know []string
	if record.Knowledge.NavigationPattern != "" {
		know = append(know, "Navigation: "+record.Knowledge.NavigationPattern)
	}
	for _, tip := range record.Knowledge.FormTips {
		know = append(know, "- "+tip)
	}
	if len(know) > 0 {
		p.add("Operation knowledge", strings.Join(know, "\n"))
	}

	if len(record.Knowledge.Precautions) > 0 {
		p.add("Precautions", bulleted(record.Knowledge.Precautions))
	}

	if len(record.Knowledge.AntiPatterns) > 0 {
		p.add("Anti-patterns (do not do this)", bulleted(record.Knowledge.AntiPatterns))
	}

	if record.ReplicationGuide != "" {
		p.add("Reference procedure", record.ReplicationGuide)
	}

	if safeMode {
		p.add("Destructive-action policy", safeModePolicy)
	}

	return p
}

func (p *Payload) add(title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	p.sections = append(p.sections, section{title: title, body: body})
}

// Text renders the payload. Rendering is deterministic: section order
// is fixed by Build.
func (p *Payload) Text() string {
	var b strings.Builder
	for i, s := range p.sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", s.title, s.body)
	}
	return b.String()
}

// Sections returns the number of rendered sections.
func (p *Payload) Sections() int { return len(p.sections) }

// TokenEstimate counts payload tokens with the cl100k_base encoding,
// falling back to a bytes/4 heuristic if the encoding is unavailable.
func (p *Payload) TokenEstimate() int {
	text := p.Text()
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return strings.TrimRight(b.String(), "\n")
}
