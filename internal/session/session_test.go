package session

import (
	"context"
	"strings"
	"testing"

	"github.com/velestore/podbor/internal/resolver"
)

// fakeResolver records every resolved query and matches only the texts listed
// in matches.
type fakeResolver struct {
	queries []string
	matches map[string][]resolver.Result
}

func (f *fakeResolver) Resolve(text string) resolver.Resolution {
	f.queries = append(f.queries, text)
	if results, ok := f.matches[text]; ok {
		return resolver.Resolution{Results: results}
	}
	return resolver.Resolution{Results: []resolver.Result{}, NeedsClarification: true}
}

type recordedEvent struct {
	sessionID, event, text string
}

type fakeAudit struct {
	events []recordedEvent
}

func (f *fakeAudit) LogEvent(_ context.Context, sessionID, event, text string) error {
	f.events = append(f.events, recordedEvent{sessionID, event, text})
	return nil
}

type fakePopularity struct {
	shown []resolver.Result
}

func (f *fakePopularity) IncrementShown(_ context.Context, r resolver.Result) error {
	f.shown = append(f.shown, r)
	return nil
}

func TestTurn_ConfidentQueryStaysIdle(t *testing.T) {
	hat := resolver.Result{Name: "Шапка", Link: "https://example.com/hat", Score: 0.8}
	fr := &fakeResolver{matches: map[string][]resolver.Result{"шапка": {hat}}}
	audit := &fakeAudit{}
	popular := &fakePopularity{}
	m := NewManager(fr, audit, popular, nil)
	ctx := context.Background()

	got := m.Turn(ctx, "u1", "шапка")
	if got.NeedsClarification {
		t.Fatal("expected a match")
	}
	if len(got.Results) != 1 || got.Results[0].Name != "Шапка" {
		t.Errorf("results: %+v", got.Results)
	}
	if got.Prompt != "" {
		t.Errorf("prompt on a confident match: %q", got.Prompt)
	}
	if m.StateOf("u1") != StateIdle {
		t.Error("session should remain idle")
	}
	if len(popular.shown) != 1 || popular.shown[0].Link != hat.Link {
		t.Errorf("popularity: %+v", popular.shown)
	}

	wantEvents := []string{EventQuery, EventResultSent}
	if len(audit.events) != len(wantEvents) {
		t.Fatalf("events: %+v", audit.events)
	}
	for i, want := range wantEvents {
		if audit.events[i].event != want {
			t.Errorf("event %d: got %s, want %s", i, audit.events[i].event, want)
		}
	}
}

func TestTurn_ClarificationAccumulates(t *testing.T) {
	fr := &fakeResolver{matches: map[string][]resolver.Result{}}
	m := NewManager(fr, nil, nil, nil)
	ctx := context.Background()

	m.Turn(ctx, "u1", "A")
	if m.StateOf("u1") != StateAwaitingClarification {
		t.Fatal("expected awaiting state after ambiguous query")
	}
	m.Turn(ctx, "u1", "B")
	m.Turn(ctx, "u1", "C")

	want := []string{"A", "A B", "A B C"}
	if len(fr.queries) != len(want) {
		t.Fatalf("queries: %v", fr.queries)
	}
	for i, w := range want {
		if fr.queries[i] != w {
			t.Errorf("query %d: got %q, want %q", i, fr.queries[i], w)
		}
	}
	if m.StateOf("u1") != StateAwaitingClarification {
		t.Error("unmatched session must stay in the clarifying state")
	}
}

func TestTurn_MatchOnCombinedQueryClearsSession(t *testing.T) {
	sofa := resolver.Result{Name: "Диван", Link: "https://example.com/sofa"}
	fr := &fakeResolver{matches: map[string][]resolver.Result{"диван красный": {sofa}}}
	audit := &fakeAudit{}
	m := NewManager(fr, audit, nil, nil)
	ctx := context.Background()

	first := m.Turn(ctx, "u1", "диван")
	if !first.NeedsClarification {
		t.Fatal("setup: first query should be ambiguous")
	}
	second := m.Turn(ctx, "u1", "красный")
	if second.NeedsClarification {
		t.Fatalf("combined query should match: %+v", second)
	}
	if m.StateOf("u1") != StateIdle {
		t.Error("matched session must return to idle")
	}

	// The next query starts a fresh conversation, no stale accumulation.
	m.Turn(ctx, "u1", "стол")
	if got := fr.queries[len(fr.queries)-1]; got != "стол" {
		t.Errorf("fresh query: got %q", got)
	}

	var clarifications int
	for _, ev := range audit.events {
		if ev.event == EventClarification {
			clarifications++
		}
	}
	if clarifications != 1 {
		t.Errorf("clarification events: got %d, want 1", clarifications)
	}
}

func TestTurn_PromptWording(t *testing.T) {
	fr := &fakeResolver{}
	m := NewManager(fr, nil, nil, nil)
	ctx := context.Background()

	first := m.Turn(ctx, "u1", "ничего")
	if !strings.HasPrefix(first.Prompt, noMatchPreamble) {
		t.Errorf("initial prompt missing preamble: %q", first.Prompt)
	}
	matched := false
	for _, p := range initialPrompts {
		if strings.HasSuffix(first.Prompt, p) {
			matched = true
		}
	}
	if !matched {
		t.Errorf("initial prompt not from the fixed set: %q", first.Prompt)
	}

	followup := m.Turn(ctx, "u1", "всё ещё ничего")
	matched = false
	for _, p := range followupPrompts {
		if followup.Prompt == p {
			matched = true
		}
	}
	if !matched {
		t.Errorf("follow-up prompt not from the fixed set: %q", followup.Prompt)
	}
}

func TestReset(t *testing.T) {
	fr := &fakeResolver{}
	audit := &fakeAudit{}
	m := NewManager(fr, audit, nil, nil)
	ctx := context.Background()

	m.Turn(ctx, "u1", "диван")
	m.Turn(ctx, "u1", "красный")
	m.Reset(ctx, "u1")
	if m.StateOf("u1") != StateIdle {
		t.Fatal("reset must return the session to idle")
	}

	// After reset the next message is a brand new query, not a clarification.
	m.Turn(ctx, "u1", "стол")
	if got := fr.queries[len(fr.queries)-1]; got != "стол" {
		t.Errorf("query after reset: got %q", got)
	}

	last := audit.events[len(audit.events)-2]
	if last.event != EventStart {
		t.Errorf("reset should log a start event, got %+v", audit.events)
	}
}

func TestReset_UnknownSessionIsSafe(t *testing.T) {
	m := NewManager(&fakeResolver{}, nil, nil, nil)
	m.Reset(context.Background(), "never-seen")
	if m.StateOf("never-seen") != StateIdle {
		t.Error("unknown session should be idle")
	}
}

func TestTurn_TrimsWhitespace(t *testing.T) {
	fr := &fakeResolver{}
	m := NewManager(fr, nil, nil, nil)
	ctx := context.Background()

	m.Turn(ctx, "u1", "  диван  ")
	m.Turn(ctx, "u1", "\tкрасный\n")
	want := []string{"диван", "диван красный"}
	for i, w := range want {
		if fr.queries[i] != w {
			t.Errorf("query %d: got %q, want %q", i, fr.queries[i], w)
		}
	}
}

func TestTurn_SessionsAreIndependent(t *testing.T) {
	fr := &fakeResolver{}
	m := NewManager(fr, nil, nil, nil)
	ctx := context.Background()

	m.Turn(ctx, "u1", "диван")
	m.Turn(ctx, "u2", "стол")
	m.Turn(ctx, "u1", "красный")

	if got := fr.queries[len(fr.queries)-1]; got != "диван красный" {
		t.Errorf("u1 accumulation leaked across sessions: %q", got)
	}
	if m.Count() != 2 {
		t.Errorf("sessions: got %d, want 2", m.Count())
	}
}
