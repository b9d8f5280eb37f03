// Package community detects graph communities via modularity maximization
// (C7), triggered explicitly rather than on every write. The algorithm
// itself is gonum.org/v1/gonum/graph/community's Louvain-family
// Modularize - a dependency the pack declares (o9nn-echo's go.mod) but
// never actually imports anywhere in that repo, so this is its first real
// use. The bounded-concurrency LLM-labeling step is grounded on
// predicato's pkg/community.Builder (semaphore-limited goroutines over
// cluster fan-out), adapted from entity clusters to note clusters.
package community

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/store"
)

// maxLabelConcurrency bounds simultaneous LLM cluster-naming calls.
const maxLabelConcurrency = 8

// entityLinkNormalizer maps an integer entity_link weight (count of shared
// entities) into (0,1] so it mixes with semantic cosine scores and tag
// Jaccard coefficients, all of which are already bounded to [0,1].
func entityLinkNormalizer(w float64) float64 {
	return w / (w + 1)
}

func edgeWeight(e *store.Edge) float64 {
	if e.Relation == store.RelationEntityLink {
		return entityLinkNormalizer(e.Weight)
	}
	return e.Weight
}

// Detector runs community detection and LLM-based cluster labeling.
type Detector struct {
	llm *llm.Client
}

func New(client *llm.Client) *Detector {
	return &Detector{llm: client}
}

// Assignment is one note's resulting cluster membership.
type Assignment struct {
	NoteID    string
	ClusterID string
}

// Detect builds an in-memory weighted undirected graph from all notes and
// edges, runs modularity maximization at the given resolution (1.0 is the
// spec default), and returns a cluster assignment per note plus the
// {title, summary} for every non-singleton cluster. Singleton clusters get
// a deterministic id and no label.
func (d *Detector) Detect(ctx context.Context, notes []*store.Note, allEdges []*store.Edge, resolution float64) ([]Assignment, []*store.Cluster) {
	if len(notes) == 0 {
		return nil, nil
	}

	g := simple.NewWeightedUndirectedGraph(0, 0)
	idToIndex := make(map[string]int64, len(notes))
	indexToID := make(map[int64]string, len(notes))
	titleByID := make(map[string]string, len(notes))

	for i, n := range notes {
		idx := int64(i)
		idToIndex[n.ID] = idx
		indexToID[idx] = n.ID
		titleByID[n.ID] = n.Title
		g.AddNode(simple.Node(idx))
	}

	for _, e := range allEdges {
		aIdx, aOK := idToIndex[e.A]
		bIdx, bOK := idToIndex[e.B]
		if !aOK || !bOK || aIdx == bIdx {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(aIdx), T: simple.Node(bIdx), W: edgeWeight(e)})
	}

	reduced := community.Modularize(g, resolution, nil)
	groups := reduced.Structure()

	degree := make(map[string]int, len(notes))
	for _, e := range allEdges {
		degree[e.A]++
		degree[e.B]++
	}

	assignments := make([]Assignment, 0, len(notes))
	clusters := make([]*store.Cluster, 0, len(groups))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxLabelConcurrency)

	for groupIdx, members := range groups {
		clusterID := fmt.Sprintf("cl_%d", groupIdx)
		memberIDs := make([]string, 0, len(members))
		for _, node := range members {
			noteID := indexToID[node.ID()]
			memberIDs = append(memberIDs, noteID)
			mu.Lock()
			assignments = append(assignments, Assignment{NoteID: noteID, ClusterID: clusterID})
			mu.Unlock()
		}
		sort.Strings(memberIDs)

		if len(memberIDs) < 2 {
			mu.Lock()
			clusters = append(clusters, &store.Cluster{ID: clusterID, Size: len(memberIDs)})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(id string, members []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			titles := make([]string, 0, len(members))
			idByTitle := make(map[string]string, len(members))
			for _, m := range members {
				titles = append(titles, titleByID[m])
				idByTitle[titleByID[m]] = m
			}
			title, summary := d.label(ctx, id, titles, degree, idByTitle)

			mu.Lock()
			clusters = append(clusters, &store.Cluster{ID: id, Title: title, Summary: summary, Size: len(members)})
			mu.Unlock()
		}(clusterID, memberIDs)
	}

	wg.Wait()

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return assignments, clusters
}

const labelSystemPrompt = `You name a cluster of related notes.
Return ONLY a JSON object with exactly these keys: "title", "summary".
"title": 3 to 5 words summarizing the common theme.
"summary": 1 to 2 sentences describing what ties these notes together.
No markdown, no explanation, no code fences. Start with { and end with }.`

func (d *Detector) label(ctx context.Context, clusterID string, titles []string, degree map[string]int, idByTitle map[string]string) (title, summary string) {
	sample := titles
	if len(sample) > 10 {
		sample = sample[:10]
	}
	prompt := "Note titles in this cluster:\n- " + strings.Join(sample, "\n- ")

	if d.llm == nil {
		return fallbackLabel(clusterID, titles, degree, idByTitle)
	}

	raw, err := d.llm.Complete(ctx, labelSystemPrompt, prompt, store.LLMOpClusterTitle, nil)
	if err != nil {
		return fallbackLabel(clusterID, titles, degree, idByTitle)
	}

	t, s, ok := parseLabel(raw)
	if !ok {
		return fallbackLabel(clusterID, titles, degree, idByTitle)
	}
	return t, s
}

// fallbackLabel is used both when the LLM call fails and (per spec) to
// compute the deterministic summary: the three most central member titles,
// central meaning highest edge degree within the full graph.
func fallbackLabel(clusterID string, titles []string, degree map[string]int, idByTitle map[string]string) (string, string) {
	top := centralTitles(titles, degree, idByTitle)
	if len(top) > 3 {
		top = top[:3]
	}
	return fmt.Sprintf("Cluster #%s", strings.TrimPrefix(clusterID, "cl_")), strings.Join(top, ", ")
}

// centralTitles orders member titles by how many edges connect their note
// to other notes in the graph (highest degree first), used for the
// deterministic fallback summary when LLM labeling is unavailable.
func centralTitles(titles []string, degree map[string]int, idByTitle map[string]string) []string {
	sorted := make([]string, len(titles))
	copy(sorted, titles)
	sort.Slice(sorted, func(i, j int) bool {
		di := degree[idByTitle[sorted[i]]]
		dj := degree[idByTitle[sorted[j]]]
		if di != dj {
			return di > dj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

func parseLabel(raw string) (title, summary string, ok bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return "", "", false
	}
	if parsed.Title == "" {
		return "", "", false
	}
	return parsed.Title, parsed.Summary, true
}

var _ graph.Graph = (*simple.WeightedUndirectedGraph)(nil)
