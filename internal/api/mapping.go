package api

import (
	"github.com/notegraph/notegraph/internal/api/dto"
	"github.com/notegraph/notegraph/internal/store"
	"github.com/notegraph/notegraph/internal/tags"
)

func toTimeRefs(in []store.TimeReference) []dto.TimeRef {
	out := make([]dto.TimeRef, 0, len(in))
	for _, t := range in {
		out = append(out, dto.TimeRef{Original: t.Original, Parsed: t.Parsed, Kind: t.Kind})
	}
	return out
}

func toEpisodic(ep *store.EpisodicMetadata) dto.Episodic {
	if ep == nil {
		return dto.Episodic{}
	}
	return dto.Episodic{
		Who: ep.Who, What: ep.What, Where: ep.Where,
		When: toTimeRefs(ep.When), Tags: ep.Tags,
	}
}

func toProspective(pr *store.ProspectiveMetadata) *dto.Prospective {
	if pr == nil {
		return nil
	}
	items := make([]dto.ProspectiveItem, 0, len(pr.Items))
	for _, it := range pr.Items {
		items = append(items, dto.ProspectiveItem{Content: it.Content, Timedata: it.Timedata})
	}
	return &dto.Prospective{ContainsProspective: pr.ContainsProspective, Items: items}
}

func toTag(t *store.Tag) dto.Tag {
	return dto.Tag{
		ID: t.ID, Name: t.Name, ParentID: t.ParentID, Level: t.Level,
		UseCount: t.UseCount, CreatedAt: t.CreatedAt, LastUsedAt: t.LastUsedAt,
		Source: t.Source, ChildCount: t.ChildCount, ParentName: t.ParentName,
	}
}

func toTags(ts []*store.Tag) []dto.Tag {
	out := make([]dto.Tag, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTag(t))
	}
	return out
}

func toTagSearchHits(rs []tags.SearchResult) []dto.TagSearchHit {
	out := make([]dto.TagSearchHit, 0, len(rs))
	for _, r := range rs {
		out = append(out, dto.TagSearchHit{Tag: toTag(r.Tag), Tier: string(r.Tier)})
	}
	return out
}

func toNoteSummary(n *store.Note) dto.NoteSummary {
	return dto.NoteSummary{ID: n.ID, Title: n.Title, Path: n.Path, Created: n.CreatedAt}
}

func toNoteSummaries(ns []*store.Note) []dto.NoteSummary {
	out := make([]dto.NoteSummary, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNoteSummary(n))
	}
	return out
}

func toClusterSummary(c *store.Cluster) dto.ClusterSummary {
	return dto.ClusterSummary{ID: c.ID, Title: c.Title, Summary: c.Summary, Size: c.Size}
}
