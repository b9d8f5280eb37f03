// Package timeparse implements deterministic, rule-based extraction of time
// references from free text. It exists because a dedicated regex/lexicon
// pass against explicit date vocabulary outperforms asking the extraction
// LLM to also guess dates - the LLM has no fixed "today" to anchor relative
// phrases against and drifts on recurring/duration phrasing.
//
// The pass structure mirrors pkg/scanner/chunker/tagger.go's two-pass
// tagger: pass 1 is a baseline lexicon/regex scan that finds every
// candidate span and assigns it a provisional kind, pass 2 is a context
// reinforcement pass that merges adjacent date+time candidates into a
// single reference and drops candidates whose span lies inside a longer
// candidate's span.
package timeparse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/notegraph/notegraph/internal/store"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// candidate is a single match from the pass-1 scan, before merging.
type candidate struct {
	start, end int
	original   string
	kind       string
	resolve    func(anchor time.Time) *time.Time
}

var (
	monthNamePattern = func() *regexp.Regexp {
		names := make([]string, 0, len(months))
		for name := range months {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
		return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	}()
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	clockTimePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Pattern     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	weekdayPattern     = func() *regexp.Regexp {
		names := make([]string, 0, len(weekdays))
		for name := range weekdays {
			names = append(names, name)
		}
		return regexp.MustCompile(`(?i)\b(next|this|last)?\s*(` + strings.Join(names, "|") + `)\b`)
	}()
	relativeDayPattern = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday)\b`)
	inNDaysPattern     = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(day|days|week|weeks|month|months|hour|hours|minute|minutes)\b`)
	durationPattern    = regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*(minute|minutes|hour|hours|day|days|week|weeks|month|months)\b`)
	recurringPattern   = regexp.MustCompile(`(?i)\bevery\s+(day|week|month|year|` + weekdayGroup() + `)\b`)
)

func weekdayGroup() string {
	names := make([]string, 0, len(weekdays))
	for name := range weekdays {
		names = append(names, name)
	}
	return strings.Join(names, "|")
}

// Parse scans text for time references, anchored at now for relative
// resolution ("tomorrow", "next Friday", "in 3 days"). Results are returned
// in first-appearance order; overlapping candidates are resolved by
// preferring the longest match (pass 2), so "October 25 at 5pm" merges into
// a single absolute reference rather than two.
func Parse(text string, now time.Time) []store.TimeReference {
	candidates := scanCandidates(text, now)
	merged := mergeAdjacent(text, candidates)

	sort.Slice(merged, func(i, j int) bool { return merged[i].start < merged[j].start })

	seen := make(map[string]bool, len(merged))
	out := make([]store.TimeReference, 0, len(merged))
	for _, c := range merged {
		key := strings.ToLower(strings.TrimSpace(c.original))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		var parsedMs *int64
		if resolved := c.resolve(now); resolved != nil {
			ms := resolved.UnixMilli()
			parsedMs = &ms
		}
		out = append(out, store.TimeReference{
			Original: strings.TrimSpace(c.original),
			Parsed:   parsedMs,
			Kind:     c.kind,
		})
	}
	return out
}

func scanCandidates(text string, now time.Time) []candidate {
	var out []candidate

	for _, loc := range recurringPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildRecurring(text, loc))
	}

	for _, loc := range inNDaysPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildInNUnits(text, loc))
	}

	for _, loc := range monthNamePattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildMonthDate(text, loc))
	}

	for _, loc := range isoDatePattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildISODate(text, loc))
	}

	for _, loc := range slashDatePattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildSlashDate(text, loc))
	}

	for _, loc := range relativeDayPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildRelativeDay(text, loc))
	}

	for _, loc := range weekdayPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildWeekday(text, loc))
	}

	for _, loc := range clockTimePattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildClockTime(text, loc))
	}

	for _, loc := range clock24Pattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, buildClock24(text, loc))
	}

	for _, loc := range durationPattern.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(loc[0], loc[1], out) {
			continue
		}
		out = append(out, buildDuration(text, loc))
	}

	return out
}

func overlapsAny(start, end int, existing []candidate) bool {
	for _, c := range existing {
		if start < c.end && end > c.start {
			return true
		}
	}
	return false
}

// mergeAdjacent is the context-reinforcement pass: a date candidate
// immediately followed (within a few words, e.g. " at ") by a clock-time
// candidate is folded into one absolute reference carrying both pieces of
// information, and a candidate whose span lies inside a longer candidate's
// span is dropped in favor of the longer one; partially overlapping spans
// are both kept.
func mergeAdjacent(text string, candidates []candidate) []candidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].start < candidates[j].start })

	var merged []candidate
	used := make([]bool, len(candidates))

	for i := range candidates {
		if used[i] {
			continue
		}
		c := candidates[i]
		if c.kind != store.TimeKindAbsolute && c.kind != store.TimeKindRelative {
			merged = append(merged, c)
			continue
		}

		for j := i + 1; j < len(candidates); j++ {
			if used[j] || candidates[j].start < c.end {
				continue
			}
			between := text[c.end:candidates[j].start]
			if len(between) > 8 || (candidates[j].kind != "clock") {
				break
			}
			clockResolve := candidates[j].resolve
			dateResolve := c.resolve
			combinedOriginal := text[c.start:candidates[j].end]
			combinedEnd := candidates[j].end
			c = candidate{
				start: c.start, end: combinedEnd, original: combinedOriginal, kind: c.kind,
				resolve: func(anchor time.Time) *time.Time {
					base := dateResolve(anchor)
					clk := clockResolve(anchor)
					if base == nil || clk == nil {
						return base
					}
					combined := time.Date(base.Year(), base.Month(), base.Day(), clk.Hour(), clk.Minute(), 0, 0, base.Location())
					return &combined
				},
			}
			used[j] = true
			break
		}
		merged = append(merged, c)
	}

	// drop overlapping leftovers, preferring the longer span already chosen
	result := make([]candidate, 0, len(merged))
	for _, c := range merged {
		dominated := false
		for _, other := range merged {
			if other.start == c.start && other.end == c.end {
				continue
			}
			if other.start <= c.start && other.end >= c.end && (other.end-other.start) > (c.end-c.start) {
				dominated = true
				break
			}
		}
		if !dominated {
			result = append(result, c)
		}
	}
	return result
}

func buildISODate(text string, loc []int) candidate {
	year, _ := strconv.Atoi(text[loc[2]:loc[3]])
	month, _ := strconv.Atoi(text[loc[4]:loc[5]])
	day, _ := strconv.Atoi(text[loc[6]:loc[7]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindAbsolute,
		resolve: func(anchor time.Time) *time.Time {
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, anchor.Location())
			return &t
		},
	}
}

func buildSlashDate(text string, loc []int) candidate {
	month, _ := strconv.Atoi(text[loc[2]:loc[3]])
	day, _ := strconv.Atoi(text[loc[4]:loc[5]])
	yearStr := text[loc[6]:loc[7]]
	year, _ := strconv.Atoi(yearStr)
	if len(yearStr) == 2 {
		year += 2000
	}
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindAbsolute,
		resolve: func(anchor time.Time) *time.Time {
			if month < 1 || month > 12 || day < 1 || day > 31 {
				return nil
			}
			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, anchor.Location())
			return &t
		},
	}
}

func buildMonthDate(text string, loc []int) candidate {
	monthName := strings.ToLower(text[loc[2]:loc[3]])
	day, _ := strconv.Atoi(text[loc[4]:loc[5]])
	yearStr := ""
	if loc[6] >= 0 {
		yearStr = text[loc[6]:loc[7]]
	}
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindAbsolute,
		resolve: func(anchor time.Time) *time.Time {
			month, ok := months[monthName]
			if !ok {
				return nil
			}
			year := anchor.Year()
			if yearStr != "" {
				year, _ = strconv.Atoi(yearStr)
			} else {
				guess := time.Date(year, month, day, 0, 0, 0, 0, anchor.Location())
				if guess.Before(anchor.AddDate(0, 0, -1)) {
					year++
				}
			}
			t := time.Date(year, month, day, 0, 0, 0, 0, anchor.Location())
			return &t
		},
	}
}

func buildRelativeDay(text string, loc []int) candidate {
	word := strings.ToLower(text[loc[2]:loc[3]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindRelative,
		resolve: func(anchor time.Time) *time.Time {
			var delta int
			switch word {
			case "tomorrow":
				delta = 1
			case "yesterday":
				delta = -1
			case "today":
				delta = 0
			}
			t := anchor.AddDate(0, 0, delta)
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
			return &t
		},
	}
}

func buildWeekday(text string, loc []int) candidate {
	modifier := ""
	if loc[2] >= 0 {
		modifier = strings.ToLower(text[loc[2]:loc[3]])
	}
	weekdayName := strings.ToLower(text[loc[4]:loc[5]])
	return candidate{
		start: loc[0], end: loc[1], original: strings.TrimSpace(text[loc[0]:loc[1]]), kind: store.TimeKindRelative,
		resolve: func(anchor time.Time) *time.Time {
			target, ok := weekdays[weekdayName]
			if !ok {
				return nil
			}
			diff := (int(target) - int(anchor.Weekday()) + 7) % 7
			switch modifier {
			case "next":
				if diff == 0 {
					diff = 7
				} else {
					diff += 7
				}
			case "last":
				diff = diff - 7
				if diff == 0 {
					diff = -7
				}
			case "this":
				// keep diff as-is (the coming occurrence this week, or today)
			default:
				if diff == 0 {
					diff = 0
				}
			}
			t := anchor.AddDate(0, 0, diff)
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
			return &t
		},
	}
}

func buildClockTime(text string, loc []int) candidate {
	hourStr := text[loc[2]:loc[3]]
	minuteStr := ""
	if loc[4] >= 0 {
		minuteStr = text[loc[4]:loc[5]]
	}
	meridiem := strings.ToLower(text[loc[6]:loc[7]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: "clock",
		resolve: func(anchor time.Time) *time.Time {
			hour, err := strconv.Atoi(hourStr)
			if err != nil || hour < 1 || hour > 12 {
				return nil
			}
			minute := 0
			if minuteStr != "" {
				minute, _ = strconv.Atoi(minuteStr)
			}
			if meridiem == "pm" && hour != 12 {
				hour += 12
			}
			if meridiem == "am" && hour == 12 {
				hour = 0
			}
			t := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), hour, minute, 0, 0, anchor.Location())
			return &t
		},
	}
}

func buildClock24(text string, loc []int) candidate {
	hourStr := text[loc[2]:loc[3]]
	minuteStr := text[loc[4]:loc[5]]
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: "clock",
		resolve: func(anchor time.Time) *time.Time {
			hour, _ := strconv.Atoi(hourStr)
			minute, _ := strconv.Atoi(minuteStr)
			t := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), hour, minute, 0, 0, anchor.Location())
			return &t
		},
	}
}

func buildInNUnits(text string, loc []int) candidate {
	amount, _ := strconv.Atoi(text[loc[2]:loc[3]])
	unit := strings.ToLower(text[loc[4]:loc[5]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindRelative,
		resolve: func(anchor time.Time) *time.Time {
			var t time.Time
			switch {
			case strings.HasPrefix(unit, "day"):
				t = anchor.AddDate(0, 0, amount)
			case strings.HasPrefix(unit, "week"):
				t = anchor.AddDate(0, 0, amount*7)
			case strings.HasPrefix(unit, "month"):
				t = anchor.AddDate(0, amount, 0)
			case strings.HasPrefix(unit, "hour"):
				t = anchor.Add(time.Duration(amount) * time.Hour)
			case strings.HasPrefix(unit, "minute"):
				t = anchor.Add(time.Duration(amount) * time.Minute)
			default:
				return nil
			}
			return &t
		},
	}
}

func buildDuration(text string, loc []int) candidate {
	amount, _ := strconv.Atoi(text[loc[2]:loc[3]])
	unit := strings.ToLower(text[loc[4]:loc[5]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindDuration,
		resolve: func(anchor time.Time) *time.Time {
			var t time.Time
			switch {
			case strings.HasPrefix(unit, "minute"):
				t = anchor.Add(time.Duration(amount) * time.Minute)
			case strings.HasPrefix(unit, "hour"):
				t = anchor.Add(time.Duration(amount) * time.Hour)
			case strings.HasPrefix(unit, "day"):
				t = anchor.AddDate(0, 0, amount)
			case strings.HasPrefix(unit, "week"):
				t = anchor.AddDate(0, 0, amount*7)
			case strings.HasPrefix(unit, "month"):
				t = anchor.AddDate(0, amount, 0)
			default:
				return nil
			}
			return &t
		},
	}
}

func buildRecurring(text string, loc []int) candidate {
	unit := strings.ToLower(text[loc[2]:loc[3]])
	return candidate{
		start: loc[0], end: loc[1], original: text[loc[0]:loc[1]], kind: store.TimeKindRecurring,
		resolve: func(anchor time.Time) *time.Time {
			if wd, ok := weekdays[unit]; ok {
				diff := (int(wd) - int(anchor.Weekday()) + 7) % 7
				if diff == 0 {
					diff = 7
				}
				t := anchor.AddDate(0, 0, diff)
				t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
				return &t
			}
			var t time.Time
			switch unit {
			case "day":
				t = anchor.AddDate(0, 0, 1)
			case "week":
				t = anchor.AddDate(0, 0, 7)
			case "month":
				t = anchor.AddDate(0, 1, 0)
			case "year":
				t = anchor.AddDate(1, 0, 0)
			default:
				return nil
			}
			return &t
		},
	}
}

// Format renders a resolved time reference for display.
func Format(ref store.TimeReference) string {
	if ref.Parsed == nil {
		return ref.Original
	}
	t := time.UnixMilli(*ref.Parsed)
	switch ref.Kind {
	case store.TimeKindAbsolute, store.TimeKindRelative:
		return fmt.Sprintf("%s (%s)", ref.Original, t.Format("2006-01-02"))
	default:
		return ref.Original
	}
}
