// Package episodic implements the episodic extractor (C3): a single
// strict-JSON LLM call for who/what/where/title, fused with a deterministic
// time parser and the hashtag regex for when/tags respectively.
//
// The LLM prompt/parse pipeline is adapted from pkg/extraction in this
// repo's ancestor, generalized from its fantasy entity-kind schema (no
// sub-typing here - who/what/where are flat string lists) but keeping its
// strict-JSON contract, code-fence stripping, and regex-based repair
// fallback verbatim in spirit.
package episodic

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/tags"
	"github.com/notegraph/notegraph/internal/timeparse"
)

// maxTextLength bounds how much note body is sent to the LLM per call.
const maxTextLength = 8000

// systemPrompt instructs the model to emit exactly the four expected keys.
// Placeholders in the rules are abstract (<person_1>, ...), never concrete
// names - concrete examples were found to leak into outputs as
// hallucinated entities.
const systemPrompt = `You extract structured facts from a personal note.
Return ONLY a JSON object with exactly these keys: "who", "what", "where", "title".
"who": array of strings naming people or groups mentioned.
"what": array of strings naming topics, projects, or things discussed.
"where": array of strings naming places mentioned.
"title": a short string summarizing the note in a few words.
Rules:
- Use only information present in the text. Never invent names.
- Do not copy any placeholder token like <person_1> into your output.
- If nothing fits a field, return an empty array for it.
- No markdown, no explanation, no code fences. Start with { and end with }.
Example shape (do not reuse these example values):
{"who": ["<person_1>"], "what": ["<concept_1>"], "where": ["<location_1>"], "title": "short summary"}`

var frontMatterPattern = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)

// llmResult is the raw shape parsed from the model's JSON output.
type llmResult struct {
	Who   []string `json:"who"`
	What  []string `json:"what"`
	Where []string `json:"where"`
	Title string   `json:"title"`
}

// Extractor runs the episodic extraction pipeline.
type Extractor struct {
	llm  *llm.Client
	tags *tags.Service
}

func New(client *llm.Client, tagSvc *tags.Service) *Extractor {
	return &Extractor{llm: client, tags: tagSvc}
}

// Extract produces EpisodicMetadata for a note. currentDate anchors
// relative time parsing ("tomorrow", "next Friday"). On LLM or parse
// failure, who/what/where fall back to empty and title falls back to the
// note's first line truncated to 60 characters - capture_note must still
// succeed.
func (e *Extractor) Extract(ctx context.Context, noteID, text string, currentDate time.Time, record func(*store.LLMOperation)) *store.EpisodicMetadata {
	meta := &store.EpisodicMetadata{
		NoteID: noteID,
		When:   timeparse.Parse(text, currentDate),
		Tags:   tags.ParseHashtags(text),
	}

	cleanText := frontMatterPattern.ReplaceAllString(text, "")
	truncated := cleanText
	if len(truncated) > maxTextLength {
		truncated = truncated[:maxTextLength]
	}

	raw, err := e.llm.Complete(ctx, systemPrompt, truncated, store.LLMOpEpisodic, func(op *store.LLMOperation) {
		op.NoteID = noteID
		if record != nil {
			record(op)
		}
	})
	if err != nil {
		meta.Title = fallbackTitle(cleanText)
		return meta
	}

	parsed, ok := parseResult(raw)
	if !ok {
		meta.Title = fallbackTitle(cleanText)
		return meta
	}

	meta.Who = dedupOrdered(parsed.Who)
	meta.What = dedupOrdered(parsed.What)
	meta.Where = dedupOrdered(parsed.Where)
	meta.Title = strings.TrimSpace(parsed.Title)
	if meta.Title == "" {
		meta.Title = fallbackTitle(cleanText)
	}
	return meta
}

func fallbackTitle(text string) string {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if len(firstLine) > 60 {
		firstLine = strings.TrimSpace(firstLine[:60])
	}
	if firstLine == "" {
		firstLine = "Untitled note"
	}
	return firstLine
}

// dedupOrdered removes case-insensitive duplicates, preserving first
// appearance order.
func dedupOrdered(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func parseResult(raw string) (*llmResult, bool) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, false
	}

	var result llmResult
	if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
		return &result, true
	}

	// Last resort: pull the four fields out with a permissive regex scan,
	// the way the ancestor extraction pipeline repairs malformed JSON.
	if repaired := repairResult(cleaned); repaired != nil {
		return repaired, true
	}
	return nil, false
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

var (
	stringArrayField = func(field string) *regexp.Regexp {
		return regexp.MustCompile(`"` + field + `"\s*:\s*\[([^\]]*)\]`)
	}
	titleField     = regexp.MustCompile(`"title"\s*:\s*"([^"]*)"`)
	quotedElemRe   = regexp.MustCompile(`"([^"]*)"`)
	whoFieldRe     = stringArrayField("who")
	whatFieldRe    = stringArrayField("what")
	whereFieldRe   = stringArrayField("where")
)

func repairResult(raw string) *llmResult {
	who := extractStringArray(raw, whoFieldRe)
	what := extractStringArray(raw, whatFieldRe)
	where := extractStringArray(raw, whereFieldRe)
	title := ""
	if m := titleField.FindStringSubmatch(raw); m != nil {
		title = m[1]
	}
	if len(who) == 0 && len(what) == 0 && len(where) == 0 && title == "" {
		return nil
	}
	return &llmResult{Who: who, What: what, Where: where, Title: title}
}

func extractStringArray(raw string, fieldRe *regexp.Regexp) []string {
	m := fieldRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	matches := quotedElemRe.FindAllStringSubmatch(m[1], -1)
	out := make([]string, 0, len(matches))
	for _, mm := range matches {
		out = append(out, mm[1])
	}
	return out
}
