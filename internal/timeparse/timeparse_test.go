package timeparse

import (
	"testing"
	"time"

	"github.com/notegraph/notegraph/internal/store"
)

func anchor() time.Time {
	return time.Date(2026, time.July, 30, 9, 0, 0, 0, time.UTC)
}

func TestParseRelativeDay(t *testing.T) {
	refs := Parse("let's sync tomorrow about the launch", anchor())
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %+v", refs)
	}
	if refs[0].Kind != store.TimeKindRelative {
		t.Fatalf("expected relative kind, got %s", refs[0].Kind)
	}
	got := time.UnixMilli(*refs[0].Parsed)
	want := anchor().AddDate(0, 0, 1)
	if got.Year() != want.Year() || got.YearDay() != want.YearDay() {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseNextWeekday(t *testing.T) {
	refs := Parse("meeting next Friday", anchor())
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %+v", refs)
	}
	got := time.UnixMilli(*refs[0].Parsed)
	if got.Weekday() != time.Friday {
		t.Fatalf("expected Friday, got %v", got.Weekday())
	}
	if !got.After(anchor()) {
		t.Fatalf("expected resolved date to be after anchor, got %v", got)
	}
}

func TestParseAbsoluteDateWithTime(t *testing.T) {
	refs := Parse("flight leaves October 25 at 5pm", anchor())
	if len(refs) != 1 {
		t.Fatalf("expected merged single reference, got %+v", refs)
	}
	if refs[0].Kind != store.TimeKindAbsolute {
		t.Fatalf("expected absolute kind, got %s", refs[0].Kind)
	}
	got := time.UnixMilli(*refs[0].Parsed)
	if got.Month() != time.October || got.Day() != 25 || got.Hour() != 17 {
		t.Fatalf("expected Oct 25 17:00, got %v", got)
	}
}

func TestParseDuration(t *testing.T) {
	refs := Parse("the standup runs for 30 minutes", anchor())
	found := false
	for _, r := range refs {
		if r.Kind == store.TimeKindDuration {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duration reference, got %+v", refs)
	}
}

func TestParseRecurring(t *testing.T) {
	refs := Parse("standup happens every Monday", anchor())
	found := false
	for _, r := range refs {
		if r.Kind == store.TimeKindRecurring {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a recurring reference, got %+v", refs)
	}
}

func TestParseDedup(t *testing.T) {
	refs := Parse("tomorrow, yes tomorrow, is the deadline", anchor())
	count := 0
	for _, r := range refs {
		if r.Original == "tomorrow" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected dedup to collapse repeated phrase, got %d occurrences in %+v", count, refs)
	}
}
