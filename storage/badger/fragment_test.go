package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
)

func seedFragments(t *testing.T, stores *Stores) []*core.Fragment {
	t.Helper()

	fragments := []*core.Fragment{
		{
			Text:   "Falling dreams often follow a loss of control in waking life.",
			Source: "interpretation-handbook",
			Scope:  "symbolism",
			Vector: []float32{1, 0, 0},
		},
		{
			Text:   "Water in dreams is commonly read as emotion or the unconscious.",
			Source: "interpretation-handbook",
			Scope:  "symbolism",
			Vector: []float32{0, 1, 0},
		},
		{
			Text:   "Teeth falling out ranks among the most reported dream motifs.",
			Source: "survey-2019",
			Scope:  "symbolism",
			Vector: []float32{0.7, 0.7, 0},
		},
		{
			Text:   "REM sleep intensifies in the final third of the night.",
			Source: "sleep-primer",
			Scope:  "physiology",
			Vector: []float32{0, 0, 1},
		},
	}
	if err := stores.Fragments.PutFragments(context.Background(), fragments...); err != nil {
		t.Fatalf("Failed to put fragments: %v", err)
	}
	return fragments
}

func TestFragmentContentIDAndGet(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	fragments := seedFragments(t, stores)

	for _, fragment := range fragments {
		if fragment.Id == 0 {
			t.Fatal("Expected content ID assigned")
		}
	}

	got, err := stores.Fragments.GetFragments(ctx, fragments[0].Id, core.ID(999999), fragments[1].Id)
	if err != nil {
		t.Fatalf("Failed to get fragments: %v", err)
	}
	// The unknown ID is silently omitted.
	if len(got) != 2 {
		t.Fatalf("Expected 2 fragments, got %d", len(got))
	}
}

func TestFragmentValidation(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	err = stores.Fragments.PutFragments(context.Background(), &core.Fragment{Text: "no scope"})
	if !errors.Is(err, core.ErrInvalidFragment) {
		t.Fatalf("Expected ErrInvalidFragment, got %v", err)
	}
}

func TestLinksByThemes(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	fragments := seedFragments(t, stores)

	links := []core.FragmentLink{
		{FragmentId: fragments[0].Id, ThemeCode: "falling", Score: 0.9},
		{FragmentId: fragments[2].Id, ThemeCode: "falling", Score: 0.5},
		{FragmentId: fragments[1].Id, ThemeCode: "water", Score: 0.8},
	}
	if err := stores.Fragments.PutLinks(ctx, links...); err != nil {
		t.Fatalf("Failed to put links: %v", err)
	}

	got, err := stores.Fragments.LinksByThemes(ctx, []string{"falling"}, 0)
	if err != nil {
		t.Fatalf("Failed to get links: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 falling links, got %d", len(got))
	}

	// minScore filters weak associations.
	got, err = stores.Fragments.LinksByThemes(ctx, []string{"falling"}, 0.6)
	if err != nil {
		t.Fatalf("Failed to get links: %v", err)
	}
	if len(got) != 1 || got[0].FragmentId != fragments[0].Id {
		t.Fatalf("Expected only the strong link, got %v", got)
	}

	// Multiple codes aggregate.
	got, err = stores.Fragments.LinksByThemes(ctx, []string{"falling", "water"}, 0.6)
	if err != nil {
		t.Fatalf("Failed to get links: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 links across codes, got %d", len(got))
	}

	got, err = stores.Fragments.LinksByThemes(ctx, []string{"unknown"}, 0)
	if err != nil {
		t.Fatalf("Failed to get links: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Expected no links for unknown code, got %d", len(got))
	}
}

func TestFindSimilarScopedAndRanked(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	fragments := seedFragments(t, stores)

	hits, err := stores.Fragments.FindSimilar(ctx, "symbolism", []float32{1, 0, 0}, 0.3, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits above floor, got %d", len(hits))
	}
	if hits[0].Fragment.Id != fragments[0].Id {
		t.Fatal("Expected exact-match fragment ranked first")
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatal("Expected descending scores")
	}

	// The physiology fragment matches the vector but sits outside scope.
	hits, err = stores.Fragments.FindSimilar(ctx, "physiology", []float32{0, 0, 1}, 0.3, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit in physiology scope, got %d", len(hits))
	}

	// Limit truncates.
	hits, err = stores.Fragments.FindSimilar(ctx, "symbolism", []float32{1, 1, 0}, 0, 1)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected limit of 1, got %d", len(hits))
	}
}

func TestSearchTextKeywordRanking(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	seedFragments(t, stores)

	got, err := stores.Fragments.SearchText(ctx, "symbolism", "falling dreams", 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Expected keyword hits")
	}
	// Both query keywords appear in the first fragment, so it ranks first.
	if got[0].Source != "interpretation-handbook" {
		t.Fatalf("Expected handbook fragment first, got %q", got[0].Source)
	}

	got, err = stores.Fragments.SearchText(ctx, "symbolism", "zeppelin", 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Expected no hits for absent keyword, got %d", len(got))
	}
}

func TestThemeCatalogRoundTrip(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	themes := []core.Theme{
		{Code: "water", Label: "Water", Vector: []float32{0, 1}},
		{Code: "falling", Label: "Falling", Vector: []float32{1, 0}},
	}
	if err := stores.Themes.PutThemes(ctx, themes...); err != nil {
		t.Fatalf("Failed to put themes: %v", err)
	}

	got, err := stores.Themes.GetTheme(ctx, "falling")
	if err != nil {
		t.Fatalf("Failed to get theme: %v", err)
	}
	if got.Label != "Falling" {
		t.Fatalf("Expected label Falling, got %q", got.Label)
	}

	if _, err := stores.Themes.GetTheme(ctx, "absent"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	all, err := stores.Themes.GetThemes(ctx)
	if err != nil {
		t.Fatalf("Failed to list themes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 themes, got %d", len(all))
	}
	// Catalog reads come back code-ordered.
	if all[0].Code != "falling" || all[1].Code != "water" {
		t.Fatalf("Expected code order, got %q then %q", all[0].Code, all[1].Code)
	}
}
