package resolver

import (
	"math"
	"reflect"
	"testing"

	"github.com/velestore/podbor/internal/catalog"
	"github.com/velestore/podbor/internal/corpus"
	"github.com/velestore/podbor/internal/ranking"
)

func buildCorpus(t *testing.T, rows ...catalog.Row) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Build(rows)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func item(name, price string) catalog.Row {
	return catalog.Row{Name: name, Price: price, Link: "https://example.com/" + name}
}

func TestResolve_ConfidenceCollapse(t *testing.T) {
	c := buildCorpus(t,
		item("шапка", "500"),
		item("шапка синяя зимняя пуховая меховая", "700"),
		item("диван", "900"),
	)

	res := Resolve(c, "шапка", DefaultOptions())
	if res.NeedsClarification {
		t.Fatal("expected a confident match")
	}
	// The exact-name match scores 1.0, past the collapse cutoff, so the
	// weaker hat match is dropped even though it clears the threshold.
	if len(res.Results) != 1 {
		t.Fatalf("results: got %d, want 1 (collapsed)", len(res.Results))
	}
	if res.Results[0].Name != "шапка" {
		t.Errorf("collapsed to %q", res.Results[0].Name)
	}
	if math.Abs(res.Results[0].Score-1.0) > 1e-9 {
		t.Errorf("score: got %v, want 1.0", res.Results[0].Score)
	}
}

func TestResolve_NoCollapseBelowCutoff(t *testing.T) {
	// Both hat items score in (0.2, 0.45): the shared term's weight is
	// diluted by three and four unique filler terms respectively.
	c := buildCorpus(t,
		item("шапка красная тёплая вязаная", "500"),
		item("шапка синяя зимняя пуховая меховая", "700"),
		item("диван бархат", "900"),
	)

	res := Resolve(c, "шапка", DefaultOptions())
	if res.NeedsClarification {
		t.Fatal("expected matches")
	}
	if len(res.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(res.Results))
	}
	for _, r := range res.Results {
		if r.Score >= DefaultOptions().CollapseScore {
			t.Errorf("score %v unexpectedly reached the collapse cutoff", r.Score)
		}
		if r.Name == "диван бархат" {
			t.Error("unrelated item passed the threshold")
		}
	}
	if res.Results[0].Score < res.Results[1].Score {
		t.Error("results not in descending score order")
	}
}

func TestResolve_ThresholdIsInclusive(t *testing.T) {
	c := buildCorpus(t,
		item("шапка красная тёплая вязаная", "500"),
		item("диван бархат", "900"),
	)
	score := ranking.Cosine(c.Vectorize("шапка"), c.Row(0))
	if score <= 0 {
		t.Fatal("setup: expected a positive score")
	}

	opts := Options{Threshold: score, TopN: 3, CollapseScore: 2}
	res := Resolve(c, "шапка", opts)
	if len(res.Results) != 1 {
		t.Fatalf("candidate scoring exactly the threshold must be retained, got %d results", len(res.Results))
	}

	opts.Threshold = math.Nextafter(score, 2)
	res = Resolve(c, "шапка", opts)
	if !res.NeedsClarification || len(res.Results) != 0 {
		t.Fatalf("candidate scoring below the threshold must be dropped, got %+v", res)
	}
}

func TestResolve_PriceLimit(t *testing.T) {
	c := buildCorpus(t,
		item("шапка красная", "1000"),
		item("шапка синяя", "500"),
	)

	res := Resolve(c, "шапка до 600 руб", DefaultOptions())
	if res.NeedsClarification {
		t.Fatal("expected a match under the limit")
	}
	for _, r := range res.Results {
		if r.Price >= 600 {
			t.Errorf("item priced %v at or above the limit was returned", r.Price)
		}
	}
	if len(res.Results) != 1 || res.Results[0].Name != "шапка синяя" {
		t.Errorf("results: %+v", res.Results)
	}
}

func TestResolve_PriceLimitIsStrict(t *testing.T) {
	c := buildCorpus(t, item("шапка", "500"))

	// An item priced exactly at the limit is not eligible.
	res := Resolve(c, "шапка до 500 руб", DefaultOptions())
	if !res.NeedsClarification || len(res.Results) != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestResolve_EmptyCandidateSetShortCircuits(t *testing.T) {
	c := buildCorpus(t,
		item("шапка", "500"),
		item("диван", "900"),
	)

	res := Resolve(c, "до 100 руб", DefaultOptions())
	if !res.NeedsClarification {
		t.Error("expected needs-clarification")
	}
	if len(res.Results) != 0 {
		t.Errorf("results: %+v", res.Results)
	}
}

func TestResolve_EmptyQuery(t *testing.T) {
	c := buildCorpus(t, item("шапка", "500"), item("диван", "900"))

	res := Resolve(c, "", DefaultOptions())
	if !res.NeedsClarification || len(res.Results) != 0 {
		t.Errorf("empty query: got %+v", res)
	}
}

func TestResolve_TopNCap(t *testing.T) {
	c := buildCorpus(t,
		item("шапка красная тёплая вязаная", "100"),
		item("шапка синяя зимняя пуховая меховая", "200"),
		item("шапка белая летняя лёгкая хлопковая", "300"),
		item("шапка серая осенняя шерстяная плотная", "400"),
	)

	opts := Options{Threshold: 0.01, TopN: 3, CollapseScore: 2}
	res := Resolve(c, "шапка", opts)
	if len(res.Results) != 3 {
		t.Errorf("results: got %d, want 3", len(res.Results))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	c := buildCorpus(t,
		item("шапка красная тёплая вязаная", "500"),
		item("шапка синяя зимняя пуховая меховая", "700"),
	)

	first := Resolve(c, "шапка до 800 руб", DefaultOptions())
	second := Resolve(c, "шапка до 800 руб", DefaultOptions())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolutions differ:\n%+v\n%+v", first, second)
	}
}

func TestEngine_ReloadKeepsOldCorpusOnFailure(t *testing.T) {
	c := buildCorpus(t, item("шапка", "500"))
	e := NewEngine(c, "", DefaultOptions())

	bad := []catalog.Row{item("без цены", "нет")}
	if err := e.Reload(bad); err == nil {
		t.Fatal("expected a build error")
	}
	if e.Snapshot() != c {
		t.Error("failed reload must keep the previous snapshot")
	}
	if res := e.Resolve("шапка"); res.NeedsClarification {
		t.Error("previous corpus should still serve")
	}
}

func TestEngine_ReloadSwapsSnapshot(t *testing.T) {
	c := buildCorpus(t, item("шапка", "500"))
	e := NewEngine(c, "", DefaultOptions())
	old := e.Snapshot()

	if err := e.Reload([]catalog.Row{item("диван", "900")}); err != nil {
		t.Fatal(err)
	}
	if e.Snapshot() == old {
		t.Fatal("snapshot was not replaced")
	}
	// The old snapshot stays usable for resolutions already in flight.
	if res := Resolve(old, "шапка", DefaultOptions()); res.NeedsClarification {
		t.Error("old snapshot should still match")
	}
	if res := e.Resolve("диван"); res.NeedsClarification {
		t.Error("new snapshot should match the new item")
	}
}
