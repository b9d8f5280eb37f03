package embed

import (
	"math"
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

func TestNormalizeUnitLength(t *testing.T) {
	v := normalize([]float32{3, 4})
	got := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected unit length, got %f", got)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := normalize([]float32{0, 0, 0})
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected zero vector unchanged, got %v", v)
		}
	}
}

func TestCosineIdentical(t *testing.T) {
	a := normalize([]float32{1, 2, 3})
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("expected cosine 1.0 for identical vectors, got %f", got)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := Cosine(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("expected cosine 0 for orthogonal vectors, got %f", got)
	}
}

func TestTopKSimilarOrdersByScoreAndExcludesSelf(t *testing.T) {
	query := []float32{1, 0}
	all := []*store.Embedding{
		{NoteID: "self", Vector: []float32{1, 0}},
		{NoteID: "close", Vector: normalize([]float32{1, 0.1})},
		{NoteID: "far", Vector: []float32{0, 1}},
	}

	results := TopKSimilar(query, all, "self", 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results (self excluded), got %+v", results)
	}
	if results[0].NoteID != "close" {
		t.Errorf("expected 'close' ranked first, got %+v", results)
	}
}

func TestTopKSimilarRespectsLimit(t *testing.T) {
	query := []float32{1, 0}
	all := []*store.Embedding{
		{NoteID: "a", Vector: []float32{1, 0}},
		{NoteID: "b", Vector: []float32{0.9, 0.1}},
		{NoteID: "c", Vector: []float32{0, 1}},
	}
	results := TopKSimilar(query, all, "", 1)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
