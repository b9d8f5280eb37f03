package prospective

import (
	"testing"

	"github.com/notegraph/notegraph/internal/store"
)

func TestParseResultValidJSON(t *testing.T) {
	raw := `{"contains_prospective": true, "items": [{"content": "renew passport", "when": "next Friday"}]}`
	result, ok := parseResult(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if !result.ContainsProspective {
		t.Errorf("expected contains_prospective true")
	}
	if len(result.Items) != 1 || result.Items[0].Content != "renew passport" {
		t.Errorf("unexpected items: %+v", result.Items)
	}
}

func TestParseResultNoProspective(t *testing.T) {
	raw := `{"contains_prospective": false, "items": []}`
	result, ok := parseResult(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if result.ContainsProspective {
		t.Errorf("expected contains_prospective false")
	}
}

func TestParseResultInvalidJSON(t *testing.T) {
	if _, ok := parseResult("not json at all"); ok {
		t.Errorf("expected invalid JSON to fail parsing")
	}
}

func TestExtractVerifiesTimedataAgainstEpisodicWhen(t *testing.T) {
	e := &Extractor{}
	parsed := rawResult{
		ContainsProspective: true,
		Items: []rawItem{
			{Content: "renew passport", When: strPtr("next Friday")},
			{Content: "buy gift", When: strPtr("some unverified phrase")},
			{Content: "call mom", When: nil},
		},
	}

	ts := int64(1800000000000)
	episodicWhen := []store.TimeReference{
		{Original: "next Friday", Parsed: &ts, Kind: store.TimeKindRelative},
	}

	items := e.verifyItems(parsed.Items, episodicWhen)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Timedata == nil || *items[0].Timedata != ts {
		t.Errorf("expected verified timedata for matching phrase, got %+v", items[0])
	}
	if items[1].Timedata != nil {
		t.Errorf("expected nil timedata for unverified phrase, got %v", *items[1].Timedata)
	}
	if items[2].Timedata != nil {
		t.Errorf("expected nil timedata for item with no when, got %v", *items[2].Timedata)
	}
}

func strPtr(s string) *string { return &s }
