// Package normalize provides the text canonicalization shared by tag
// names and the entity/tag strings compared when linking notes.
package normalize

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

var english = stopwords.MustGet("en")

// IsStopword reports whether a ForMatch-normalized string is a single
// common English function word ("it", "this", "the"...) rather than a
// real entity or tag name. Used to drop hallucinated single-word entity
// mentions before they create spurious entity_link edges.
func IsStopword(normalized string) bool {
	return english.Contains(normalized)
}

// isJoiner reports whether r commonly appears inside a name or hashtag and
// should be kept rather than treated as a token boundary.
func isJoiner(r rune) bool {
	switch r {
	case '·', '.', '/', '#', '&':
		return true
	default:
		return false
	}
}

// ForMatch folds to lowercase, drops apostrophes (straight or curly),
// treats hyphens, dashes and underscores as word separators, keeps
// letters/digits/joiners, and collapses everything else to single spaces.
// Used for entity-string and tag-name comparison so "O'Brien" and "obrien"
// - or "Project Alpha", "project-alpha" and "project_alpha" - are
// recognized as the same key.
func ForMatch(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if c == '\'' || c == '’' || c == '‘' {
			continue
		}
		if c == '-' || c == '–' || c == '—' || c == '_' {
			c = ' '
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

// TagName lowercases and collapses whitespace for a tag name, preserving
// the "/" hierarchy separator and leaving other joiners intact. Unlike
// ForMatch, it does not fold "/" to a space since hierarchy depends on it.
func TagName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		if unicode.IsSpace(c) {
			if !lastWasSpace {
				out.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		out.WriteRune(c)
		lastWasSpace = false
	}
	result := out.String()
	return strings.TrimSuffix(result, " ")
}
