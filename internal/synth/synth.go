// Package synth implements the synthesizer (C9): assembles a context
// block from a retrieval response and streams an LLM completion back as
// Server-Sent Events. The "start"/"chunk"/"end"/"error" event contract
// mirrors the SSE shape used in o9nn-echo's live2d HTTP handler (headers,
// Flusher-driven delivery) adapted from a generic update channel to an
// LLM token stream.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/retrieval"
	"github.com/notegraph/notegraph/internal/store"
)

const systemPrompt = `You answer a question using only the notes given as context below.
Cite which notes support each claim by their title when relevant.
If the context does not contain the answer, say so plainly rather than guessing.`

// NoteReader looks up note rows and episodic metadata for context
// assembly; note bodies are passed in by the caller.
type NoteReader interface {
	GetNote(id string) (*store.Note, error)
	GetEpisodic(noteID string) (*store.EpisodicMetadata, error)
}

// Synthesizer streams answers grounded in retrieval results.
type Synthesizer struct {
	llm    *llm.Client
	reader NoteReader
}

func New(client *llm.Client, reader NoteReader) *Synthesizer {
	return &Synthesizer{llm: client, reader: reader}
}

// BuildContext assembles the prompt context block: primary notes in full,
// expanded notes as short previews, cluster titles/summaries as section
// headers.
func (s *Synthesizer) BuildContext(resp *retrieval.Response, bodies map[string]string) string {
	var b strings.Builder

	if len(resp.Clusters) > 0 {
		b.WriteString("## Related themes\n")
		for _, c := range resp.Clusters {
			if c.Title == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", c.Title, c.Summary)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Primary notes\n")
	for _, p := range resp.Primary {
		note, err := s.reader.GetNote(p.NoteID)
		if err != nil || note == nil {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", note.Title, bodies[p.NoteID])
	}

	if len(resp.Expanded) > 0 {
		b.WriteString("## Related notes (preview)\n")
		for _, e := range resp.Expanded {
			note, err := s.reader.GetNote(e.NoteID)
			if err != nil || note == nil {
				continue
			}
			preview := bodies[e.NoteID]
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fmt.Fprintf(&b, "- %s (%s, hop %d): %s\n", note.Title, e.Relation, e.HopDistance, preview)
		}
	}

	return b.String()
}

// Event is one SSE message in the synthesis stream.
type Event struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	NoteIDs []string `json:"noteIds,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Stream writes start/chunk/end/error SSE events to w as the LLM answer
// is generated. noteIDs are every id consulted for the "end" event. If the
// client disconnects mid-stream (ctx.Done), writing stops silently -
// partial text already flushed to the client is not retracted, matching
// the no-retraction contract.
func (s *Synthesizer) Stream(ctx context.Context, w http.ResponseWriter, query, contextBlock string, noteIDs []string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, flusher, Event{Type: "start"})

	var full strings.Builder
	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, query)

	err := s.llm.Stream(ctx, systemPrompt, userPrompt, func(chunk string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		full.WriteString(chunk)
		writeEvent(w, flusher, Event{Type: "chunk", Text: chunk})
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		writeEvent(w, flusher, Event{Type: "error", Error: err.Error()})
		return err
	}

	writeEvent(w, flusher, Event{Type: "end", Text: full.String(), NoteIDs: noteIDs})
	return nil
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	flusher.Flush()
}
