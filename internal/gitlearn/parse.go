// Package gitlearn turns commits into stored knowledge: structured commit
// records, error solutions and code patterns declared in commit metadata,
// and relations between the modules a commit touched and the patterns it
// exhibits.
package gitlearn

import (
	"regexp"
	"strings"
)

// ParsedMessage is the structured form of a commit subject line.
// Parsed is false when the subject does not follow the grammar; the commit
// is still learned, just without type/module/identity.
type ParsedMessage struct {
	Type        string
	Module      string
	Description string
	Identity    string
	Breaking    bool
	Parsed      bool
}

// Subject grammar: type(scope)!: description [IDENTITY]
// Scope, the breaking marker, and the identity tag are all optional.
var subjectRe = regexp.MustCompile(`^([a-z]+)(?:\(([\w./-]+)\))?(!)?:\s+(.+?)(?:\s+\[([A-Z][A-Z0-9_-]*)\])?$`)

// ParseMessage matches the first line of a commit message against the
// subject grammar. Messages that do not match are not an error; they come
// back with Parsed false and only the description set to the raw subject.
func ParseMessage(message string) ParsedMessage {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	subject = strings.TrimSpace(subject)

	m := subjectRe.FindStringSubmatch(subject)
	if m == nil {
		return ParsedMessage{Description: subject}
	}
	return ParsedMessage{
		Type:        m[1],
		Module:      m[2],
		Description: m[4],
		Identity:    m[5],
		Breaking:    m[3] == "!",
		Parsed:      true,
	}
}
