package research

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractYearsRange(t *testing.T) {
	// The pattern covers 1600-2099; earlier dates and long numbers are noise.
	got := extractYears("founded 1599, active 1952-2008, SKU 30000, upcoming 2099, medieval 1492")
	want := []string{"1952", "2008", "2099"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractYears = %v, want %v", got, want)
	}
}

func TestTopYearsRanksByFrequencyThenYear(t *testing.T) {
	years := []string{"2008", "1952", "2008", "1999", "1952", "2021"}
	got := topYears(years, 3)
	// 1952 and 2008 tie at 2; ties break by year ascending.
	want := []string{"1952", "2008", "1999"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topYears = %v, want %v", got, want)
	}
}

func TestTimelineAlignFallsBackToObservedYears(t *testing.T) {
	s := newTestStages(failingGen{}, &mapSearcher{}, &mapFetcher{}, DefaultConfig())
	st := &State{
		Documents: []Document{
			{Content: "chartered in 1862 and again 1862"},
			{Content: "dissolved 1901"},
		},
	}
	patch, err := s.TimelineAlign(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(patch.TimelineYears, []string{"1862", "1901"}) {
		t.Fatalf("TimelineYears = %v", patch.TimelineYears)
	}
	if len(patch.TimelineQueries) != 0 {
		t.Fatalf("fallback must not invent queries: %v", patch.TimelineQueries)
	}
}

func TestTimelineAlignCountsYearsOncePerDocument(t *testing.T) {
	s := newTestStages(failingGen{}, &mapSearcher{}, &mapFetcher{}, DefaultConfig())
	// 1990 repeats inside one document; 2005 appears once in each of two.
	// Document count, not occurrence count, should rank 2005 first.
	st := &State{
		Documents: []Document{
			{Content: "1990 report, updated 1990, reprinted 1990, archived 1990"},
			{Content: "merger completed 2005"},
			{Content: "annual filing for 2005"},
		},
	}
	patch, err := s.TimelineAlign(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(patch.TimelineYears, []string{"2005", "1990"}) {
		t.Fatalf("TimelineYears = %v", patch.TimelineYears)
	}
}
