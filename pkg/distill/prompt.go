package distill

import (
	"fmt"
	"net/url"
	"strings"

	"exogram/pkg/recording"
)

const systemPrompt = `You are a browser operation analyst. You study the sequence of actions
a person performed on a website and produce a complete operation
cognition document that lets an autonomous browser agent repeat
similar tasks on that site, even after the UI changes.

Constraints:
- Do not output code.
- Do not rely on CSS selectors or XPath; describe everything in
  natural language another agent can follow.
- Output must be a single JSON object and nothing else.`

const responseSchema = `{
  "website": {
    "name": "site or system name",
    "url": "entry URL taken from the recording",
    "category": "kind of system (project management, e-commerce, OA, ...)",
    "description": "what the site does, 2-3 sentences"
  },
  "task": {
    "summary": "what the user accomplished, one sentence",
    "goal": "the inferred goal of the task",
    "steps_count": 0
  },
  "operation_flow": [
    {
      "phase": "phase name (locate, inspect, fill form, confirm, ...)",
      "description": "what happened in this phase",
      "key_actions": ["key action 1", "key action 2"]
    }
  ],
  "key_elements": [
    {
      "name": "element name (project tree, import button, ...)",
      "role": "element role (tree, table, button, dropdown, ...)",
      "usage": "how to use it"
    }
  ],
  "operation_knowledge": {
    "navigation_pattern": "how to get from the entry page to the working page",
    "form_filling_tips": ["tip"],
    "common_workflows": ["workflow"],
    "precautions": ["things to be careful about"],
    "anti_patterns": ["things not to do"]
  },
  "replication_guide": "3-5 sentences telling an agent how to perform a similar task"
}`

// buildUserPrompt renders the full ordered step sequence into the one
// structured request the engine sends per attempt.
func buildUserPrompt(doc *recording.RawStepsDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the following browser operation recording and produce the operation cognition document.\n\n")
	fmt.Fprintf(&sb, "Topic: %s\n\n", doc.Topic)
	fmt.Fprintf(&sb, "Website:\n%s\n\n", formatWebsiteInfo(doc))
	fmt.Fprintf(&sb, "Step summary:\n%s\n\n", formatStepsSummary(doc))
	fmt.Fprintf(&sb, "Steps, in order:\n%s\n\n", formatStepsDetail(doc, maxPromptSteps))
	fmt.Fprintf(&sb, "Respond with JSON exactly in this shape:\n%s", responseSchema)
	return sb.String()
}

// buildCorrectivePrompt asks the model to repair its previous answer,
// quoting the validation error verbatim.
func buildCorrectivePrompt(cause error) string {
	return fmt.Sprintf(
		"Your previous response was rejected: %v\n\nRespond again with a single valid JSON object in the required shape, fixing that problem. Do not include any text outside the JSON object.",
		cause,
	)
}

const maxPromptSteps = 40

func formatWebsiteInfo(doc *recording.RawStepsDocument) string {
	start := doc.StartURL
	if start == "" {
		start = doc.FirstNavigateURL()
	}
	if start == "" {
		return "(no website information captured)"
	}
	lines := []string{"Entry URL: " + start}
	if u, err := url.Parse(start); err == nil && u.Host != "" {
		lines = append(lines, "Host: "+u.Host)
	}
	return strings.Join(lines, "\n")
}

func formatStepsSummary(doc *recording.RawStepsDocument) string {
	counts := map[recording.Kind]int{}
	pages := make([]string, 0, 4)
	seen := map[string]bool{}
	for _, s := range doc.Steps {
		counts[s.Kind]++
		if s.URL == "" {
			continue
		}
		if u, err := url.Parse(s.URL); err == nil {
			page := u.Host + u.Path
			if page != "" && !seen[page] {
				seen[page] = true
				pages = append(pages, page)
			}
		}
	}
	lines := []string{
		fmt.Sprintf("Total steps: %d", len(doc.Steps)),
		fmt.Sprintf("Navigations: %d, clicks: %d, inputs: %d, selections: %d",
			counts[recording.KindNavigate], counts[recording.KindClick],
			counts[recording.KindType], counts[recording.KindSelect]),
	}
	if len(pages) > 0 {
		if len(pages) > 5 {
			pages = pages[:5]
		}
		lines = append(lines, "Pages visited: "+strings.Join(pages, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatStepsDetail(doc *recording.RawStepsDocument, limit int) string {
	var lines []string
	for i, s := range doc.Steps {
		if i >= limit {
			lines = append(lines, fmt.Sprintf("... and %d more steps", len(doc.Steps)-limit))
			break
		}
		switch s.Kind {
		case recording.KindNavigate:
			lines = append(lines, fmt.Sprintf("[%d] navigate to %s", s.Index, s.URL))
		case recording.KindClick:
			lines = append(lines, fmt.Sprintf("[%d] click %q", s.Index, s.Target))
		case recording.KindType:
			lines = append(lines, fmt.Sprintf("[%d] type into %q: %s", s.Index, s.Target, s.Value))
		case recording.KindSelect:
			lines = append(lines, fmt.Sprintf("[%d] select %q in %q", s.Index, s.Value, s.Target))
		case recording.KindWait:
			if s.Target != "" {
				lines = append(lines, fmt.Sprintf("[%d] wait for %q", s.Index, s.Target))
			} else {
				lines = append(lines, fmt.Sprintf("[%d] wait %dms", s.Index, s.WaitMS))
			}
		case recording.KindExtract:
			lines = append(lines, fmt.Sprintf("[%d] extract content from %q", s.Index, s.Target))
		}
	}
	return strings.Join(lines, "\n")
}
