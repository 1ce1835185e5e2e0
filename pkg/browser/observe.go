package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ParsePage extracts the interactive controls from raw page HTML into
// a compact element list. Script, style, and hidden-input noise is
// skipped; each element is described by role and accessible label so
// the snapshot stays semantic.
func ParsePage(content string) ([]Element, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("browser: parse page HTML: %w", err)
	}

	var elements []Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(elements) >= maxObservedElements {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
			if el, ok := elementFromNode(n); ok {
				elements = append(elements, el)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return elements, nil
}

func elementFromNode(n *html.Node) (Element, bool) {
	attrs := map[string]string{}
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	role := attrs["role"]
	switch n.Data {
	case "a":
		if role == "" {
			role = "link"
		}
	case "button":
		if role == "" {
			role = "button"
		}
	case "select":
		if role == "" {
			role = "dropdown"
		}
	case "textarea":
		if role == "" {
			role = "textbox"
		}
	case "input":
		t := attrs["type"]
		if t == "hidden" {
			return Element{}, false
		}
		if role == "" {
			switch t {
			case "button", "submit":
				role = "button"
			case "checkbox", "radio":
				role = t
			default:
				role = "textbox"
			}
		}
	default:
		if role == "" {
			return Element{}, false
		}
	}

	label := firstAttr(attrs, "aria-label", "placeholder", "title", "name")
	if label == "" {
		label = nodeText(n)
	}
	if label == "" {
		return Element{}, false
	}

	el := Element{
		Role:  role,
		Label: collapseSpace(label),
		Value: attrs["value"],
	}
	if n.Data == "a" {
		el.Href = attrs["href"]
	}
	return el, true
}

// nodeText returns the trimmed concatenated text content of a node.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstAttr(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}

// FormatState renders a page state for inclusion in a prompt.
func FormatState(state *PageState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nTitle: %s\n", state.URL, state.Title)
	if len(state.Elements) == 0 {
		b.WriteString("No interactive elements observed.\n")
		return b.String()
	}
	b.WriteString("Interactive elements:\n")
	for _, el := range state.Elements {
		fmt.Fprintf(&b, "- [%s] %s", el.Role, el.Label)
		if el.Value != "" {
			fmt.Fprintf(&b, " (value: %s)", el.Value)
		}
		b.WriteString("\n")
	}
	return b.String()
}
