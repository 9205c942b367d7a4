// Package conventional classifies commit messages by their
// conventional-commit header, "type(scope)!: subject".
package conventional

import (
	"regexp"
	"sort"
	"strings"
)

var headerRe = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?(!)?:\s*([^\r\n]+)`)

// Header is a parsed commit header. Type and Scope are empty when the
// message does not follow the convention.
type Header struct {
	Type     string `json:"type,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Subject  string `json:"subject"`
	Breaking bool   `json:"breaking"`
}

// Tag is the badge shown for a known commit type.
type Tag struct {
	Emoji string `json:"emoji"`
	Label string `json:"label"`
	Color string `json:"color"`
}

var tags = map[string]Tag{
	"feat":     {"✨", "Feature", "purple"},
	"fix":      {"🐛", "Fix", "red"},
	"docs":     {"📚", "Docs", "blue"},
	"style":    {"💎", "Style", "pink"},
	"refactor": {"♻️", "Refactor", "green"},
	"perf":     {"⚡", "Performance", "orange"},
	"test":     {"🧪", "Test", "yellow"},
	"build":    {"🔨", "Build", "gray"},
	"ci":       {"👷", "CI", "indigo"},
	"chore":    {"🔧", "Chore", "gray"},
	"revert":   {"⏪", "Revert", "red"},
	"wip":      {"🚧", "WIP", "yellow"},
}

// Parse matches the header pattern anchored at the start of message.
// The subject ends at the first line break, CRLF included.
func Parse(message string) Header {
	m := headerRe.FindStringSubmatch(message)
	if m == nil {
		return Header{Subject: message}
	}
	return Header{
		Type:     strings.ToLower(m[1]),
		Scope:    m[2],
		Breaking: m[3] == "!",
		Subject:  m[4],
	}
}

// Lookup returns the tag for a commit type. Unknown and empty types miss.
func Lookup(commitType string) (Tag, bool) {
	if commitType == "" {
		return Tag{}, false
	}
	t, ok := tags[strings.ToLower(commitType)]
	return t, ok
}

// Badge renders the tag of message as "✨ Feature", with a trailing "!"
// for breaking changes. Messages of unknown type get "".
func Badge(message string) string {
	h := Parse(message)
	t, ok := Lookup(h.Type)
	if !ok {
		return ""
	}
	b := t.Emoji + " " + t.Label
	if h.Breaking {
		b += " !"
	}
	return b
}

// Types lists the known commit types in sorted order.
func Types() []string {
	out := make([]string, 0, len(tags))
	for k := range tags {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
