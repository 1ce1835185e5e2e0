package session

import (
	"strings"

	"github.com/gobwas/glob"
)

// destructiveVerbs are glob patterns matched token-by-token against a
// proposed action's description. Any hit classifies the action as
// destructive under safe mode.
var destructiveVerbs = []string{
	"delete*",
	"remove*",
	"destroy*",
	"submit*",
	"send*",
	"pay*",
	"purchase*",
	"buy*",
	"checkout*",
	"order*",
	"confirm*",
	"create*",
	"publish*",
	"post*",
	"cancel*",
	"unsubscribe*",
	"transfer*",
	"approve*",
}

// Gate decides whether a proposed browser action may run. With safe
// mode off every action passes; with it on, actions whose descriptions
// match a destructive verb are withheld.
type Gate struct {
	enabled  bool
	patterns []glob.Glob
}

// NewGate builds a gate. Patterns are compiled once at construction.
func NewGate(enabled bool) *Gate {
	g := &Gate{enabled: enabled}
	for _, p := range destructiveVerbs {
		g.patterns = append(g.patterns, glob.MustCompile(p))
	}
	return g
}

// Enabled reports whether safe mode is on.
func (g *Gate) Enabled() bool { return g.enabled }

// Allows reports whether the described action may be performed. The
// action verb and its target are both inspected so that "click" on a
// "Delete repository" button is caught as well as an explicit "delete"
// action.
func (g *Gate) Allows(action, target string) bool {
	if !g.enabled {
		return true
	}
	for _, token := range strings.Fields(strings.ToLower(action + " " + target)) {
		token = strings.Trim(token, `.,;:!?"'()[]`)
		for _, p := range g.patterns {
			if p.Match(token) {
				return false
			}
		}
	}
	return true
}
