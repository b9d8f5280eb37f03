package api

import (
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

func TestToEpisodicMapsAllFields(t *testing.T) {
	parsed := int64(12345)
	ep := &store.EpisodicMetadata{
		Who: []string{"Sarah"}, What: []string{"FAISS"}, Where: []string{"Cafe"},
		When: []store.TimeReference{{Original: "today at 2pm", Parsed: &parsed, Kind: store.TimeKindAbsolute}},
		Tags: []string{"project/alpha"},
	}
	got := toEpisodic(ep)
	if len(got.Who) != 1 || got.Who[0] != "Sarah" {
		t.Fatalf("unexpected who: %v", got.Who)
	}
	if len(got.When) != 1 || got.When[0].Parsed == nil || *got.When[0].Parsed != parsed {
		t.Fatalf("unexpected when: %+v", got.When)
	}
}

func TestToEpisodicNilIsZeroValue(t *testing.T) {
	got := toEpisodic(nil)
	if got.Who != nil || got.What != nil || got.Tags != nil {
		t.Errorf("expected zero-value episodic for nil input, got %+v", got)
	}
}

func TestToProspectiveNilReturnsNil(t *testing.T) {
	if got := toProspective(nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestToProspectiveMapsItems(t *testing.T) {
	ts := int64(999)
	pr := &store.ProspectiveMetadata{
		ContainsProspective: true,
		Items:               []store.ProspectiveItem{{Content: "follow up", Timedata: &ts}},
	}
	got := toProspective(pr)
	if got == nil || !got.ContainsProspective || len(got.Items) != 1 {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if got.Items[0].Timedata == nil || *got.Items[0].Timedata != ts {
		t.Errorf("expected timedata to carry through, got %+v", got.Items[0])
	}
}

func TestToTagMapsAllFields(t *testing.T) {
	tag := &store.Tag{ID: "t1", Name: "project/alpha", ParentID: "t0", Level: 1, UseCount: 3, Source: store.TagSourceUser}
	got := toTag(tag)
	if got.ID != "t1" || got.Name != "project/alpha" || got.Level != 1 || got.UseCount != 3 {
		t.Fatalf("unexpected tag mapping: %+v", got)
	}
}

func TestToClusterSummaryMapsFields(t *testing.T) {
	c := &store.Cluster{ID: "cl_0", Title: "Q3 planning", Summary: "notes about Q3", Size: 4}
	got := toClusterSummary(c)
	if got.ID != "cl_0" || got.Size != 4 {
		t.Fatalf("unexpected cluster summary: %+v", got)
	}
}
