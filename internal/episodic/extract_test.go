package episodic

import "testing"

func TestParseResultValidJSON(t *testing.T) {
	raw := `{"who": ["Alex", "Priya"], "what": ["roadmap review"], "where": ["office"], "title": "Roadmap sync"}`
	result, ok := parseResult(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if len(result.Who) != 2 || result.Who[0] != "Alex" {
		t.Errorf("unexpected who: %v", result.Who)
	}
	if result.Title != "Roadmap sync" {
		t.Errorf("unexpected title: %q", result.Title)
	}
}

func TestParseResultWithCodeFence(t *testing.T) {
	raw := "```json\n" + `{"who": ["Sam"], "what": [], "where": [], "title": "Quick note"}` + "\n```"
	result, ok := parseResult(raw)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if len(result.Who) != 1 || result.Who[0] != "Sam" {
		t.Errorf("unexpected who: %v", result.Who)
	}
}

func TestParseResultRepairsTruncatedJSON(t *testing.T) {
	raw := `{"who": ["Jordan"], "what": ["budget review"], "where": [], "title": "Budget revie`
	result, ok := parseResult(raw)
	if !ok {
		t.Fatalf("expected repair to recover something")
	}
	if len(result.Who) != 1 || result.Who[0] != "Jordan" {
		t.Errorf("expected repaired who, got %v", result.Who)
	}
	if len(result.What) != 1 || result.What[0] != "budget review" {
		t.Errorf("expected repaired what, got %v", result.What)
	}
}

func TestParseResultEmptyInput(t *testing.T) {
	if _, ok := parseResult(""); ok {
		t.Errorf("expected empty input to fail parsing")
	}
}

func TestDedupOrderedCaseInsensitive(t *testing.T) {
	got := dedupOrdered([]string{"Alex", "alex", "Priya", " Priya "})
	want := []string{"Alex", "Priya"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFallbackTitleTruncates(t *testing.T) {
	long := "This is a very long first line of a note that definitely exceeds sixty characters in length\nsecond line"
	title := fallbackTitle(long)
	if len(title) > 60 {
		t.Errorf("expected title truncated to 60 chars, got %d: %q", len(title), title)
	}
}

func TestFallbackTitleEmptyText(t *testing.T) {
	if got := fallbackTitle("   \n"); got != "Untitled note" {
		t.Errorf("expected default title, got %q", got)
	}
}
