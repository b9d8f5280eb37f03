// Package prospective implements the prospective extractor (C4): run
// after episodic extraction (C3), it makes one more LLM call asking
// whether the note contains forward-looking items (reminders, todos,
// commitments) and, if so, which WHEN reference each one binds to.
//
// Items are never allowed to introduce a time that episodic extraction did
// not already find - verifying timedata against episodic.when keeps a
// hallucinated date out of the prospective list instead of silently
// creating a new graph-adjacent fact. This package creates no graph edges:
// prospective items are note-scoped reminders, not entities other notes
// can link through, and an earlier revision of this pipeline that treated
// "pick up dry cleaning" as an edge-worthy entity produced roughly 1200
// edges on a few hundred real notes before that rule was added.
package prospective

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/store"
)

const maxTextLength = 8000

const systemPrompt = `You scan a personal note for forward-looking items: reminders, todos, or commitments about the future.
Return ONLY a JSON object with exactly these keys: "contains_prospective", "items".
"contains_prospective": boolean, true only if at least one future-oriented item is present.
"items": array of objects, each with "content" (string, the item text) and "when" (string or null, quoting the exact time phrase from the text this item is tied to, or null if the item has no specific time).
Rules:
- Only report items clearly about the future relative to when the note was written.
- "when" must be copied verbatim from the text, not paraphrased or invented.
- If there are no such items, return {"contains_prospective": false, "items": []}.
- No markdown, no explanation, no code fences. Start with { and end with }.`

var frontMatterPattern = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)

type rawItem struct {
	Content string  `json:"content"`
	When    *string `json:"when"`
}

type rawResult struct {
	ContainsProspective bool      `json:"contains_prospective"`
	Items               []rawItem `json:"items"`
}

// Extractor runs the prospective extraction pipeline.
type Extractor struct {
	llm *llm.Client
}

func New(client *llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Extract produces ProspectiveMetadata for a note, verifying each item's
// time phrase against the already-resolved episodic.When set. episodic
// must have been produced by a prior call to internal/episodic.Extract for
// the same text - this package never parses time itself.
func (e *Extractor) Extract(ctx context.Context, noteID, text string, episodicWhen []store.TimeReference, record func(*store.LLMOperation)) *store.ProspectiveMetadata {
	meta := &store.ProspectiveMetadata{NoteID: noteID}

	cleanText := frontMatterPattern.ReplaceAllString(text, "")
	truncated := cleanText
	if len(truncated) > maxTextLength {
		truncated = truncated[:maxTextLength]
	}

	raw, err := e.llm.Complete(ctx, systemPrompt, truncated, store.LLMOpProspective, func(op *store.LLMOperation) {
		op.NoteID = noteID
		if record != nil {
			record(op)
		}
	})
	if err != nil {
		return meta
	}

	parsed, ok := parseResult(raw)
	if !ok || !parsed.ContainsProspective || len(parsed.Items) == 0 {
		return meta
	}

	items := e.verifyItems(parsed.Items, episodicWhen)
	meta.ContainsProspective = len(items) > 0
	meta.Items = items
	return meta
}

// verifyItems binds each raw item's quoted "when" phrase to the already
// time-parsed episodic.When set, nulling timedata for any phrase the
// episodic pass did not itself resolve. This is what stops the model from
// inventing a date that was never actually parsed from the text.
func (e *Extractor) verifyItems(rawItems []rawItem, episodicWhen []store.TimeReference) []store.ProspectiveItem {
	verified := make([]string, 0, len(episodicWhen))
	for _, w := range episodicWhen {
		verified = append(verified, strings.ToLower(strings.TrimSpace(w.Original)))
	}

	items := make([]store.ProspectiveItem, 0, len(rawItems))
	for _, it := range rawItems {
		content := strings.TrimSpace(it.Content)
		if content == "" {
			continue
		}
		item := store.ProspectiveItem{Content: content}
		if it.When != nil {
			phrase := strings.ToLower(strings.TrimSpace(*it.When))
			for i, w := range verified {
				if w == phrase {
					item.Timedata = episodicWhen[i].Parsed
					break
				}
			}
		}
		items = append(items, item)
	}
	return items
}

func parseResult(raw string) (*rawResult, bool) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, false
	}
	var result rawResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, false
	}
	return &result, true
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
