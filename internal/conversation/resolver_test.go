package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/crosstabs/surveychat/internal/intent"
	"github.com/crosstabs/surveychat/internal/llm"
	"github.com/crosstabs/surveychat/internal/resolver"
	"github.com/crosstabs/surveychat/internal/store"
	"github.com/crosstabs/surveychat/internal/tabulate"
)

// scriptedProvider pops one canned completion per model call.
type scriptedProvider struct {
	responses []string
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if len(p.responses) == 0 {
		return "none|none|none", nil
	}
	response := p.responses[0]
	p.responses = p.responses[1:]
	return response, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type fakeStore struct {
	exists       bool
	existenceErr error
	similar      []store.QuestionRef
	kinds        map[string]store.ColumnKind
	baseN        int
	counts       map[string]int
	values       []string
	grid         []store.GridRow

	gridBase    string
	gridNumbers []string
}

func (f *fakeStore) CheckQuestionExists(ctx context.Context, id string) (store.Existence, error) {
	if f.existenceErr != nil {
		return store.Existence{}, f.existenceErr
	}
	return store.Existence{Exists: f.exists, Similar: f.similar}, nil
}

func (f *fakeStore) SimilarQuestions(ctx context.Context, needle string) ([]store.QuestionRef, error) {
	return f.similar, nil
}

func (f *fakeStore) LookupColumnKind(ctx context.Context, baseID string) (*store.ColumnInfo, error) {
	kind, ok := f.kinds[baseID]
	if !ok {
		return nil, nil
	}
	return &store.ColumnInfo{QuestionID: baseID, Kind: kind}, nil
}

func (f *fakeStore) CountSingleAnswer(ctx context.Context, id string, code *string) (int, error) {
	if code == nil {
		return f.baseN, nil
	}
	return f.counts[*code], nil
}

func (f *fakeStore) CountMultiAnswer(ctx context.Context, id string, code *string) (int, error) {
	return f.CountSingleAnswer(ctx, id, code)
}

func (f *fakeStore) GridCounts(ctx context.Context, baseID string, gridNumbers []string) ([]store.GridRow, error) {
	f.gridBase = baseID
	f.gridNumbers = gridNumbers
	return f.grid, nil
}

func (f *fakeStore) DistinctResponseValues(ctx context.Context, id string, exact bool) ([]string, error) {
	return f.values, nil
}

func newResolver(t *testing.T, provider llm.Provider, fake *fakeStore) *Resolver {
	t.Helper()
	engine := tabulate.New(fake)
	t.Cleanup(engine.Stop)
	r, err := New(intent.NewExtractor(provider), resolver.New(fake), engine)
	if err != nil {
		t.Fatalf("construct resolver: %v", err)
	}
	return r
}

func TestExistenceCheck(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"check|Q5|none"}}
	fake := &fakeStore{exists: true}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "does Q5 exist")
	if got != "Yes, question Q5 exists in the database." {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestExistenceCheckWithSuggestions(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"check|Q5|none"}}
	fake := &fakeStore{similar: []store.QuestionRef{{QuestionID: "Q50"}}}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "does Q5 exist")
	expected := "No, question Q5 does not exist, but found these similar questions:\n- Q50"
	if got != expected {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestExistenceCheckNoSuggestions(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"check|Q5|none"}}
	fake := &fakeStore{}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "does Q5 exist")
	if got != "No, question Q5 does not exist in database" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestUnclearInput(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"none|none|none"}}
	r := newResolver(t, provider, &fakeStore{})
	got := r.Respond(context.Background(), "s1", "hello how are you")
	if got != "Please specify your operation and variable" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"max|q5|none"}}
	r := newResolver(t, provider, &fakeStore{exists: true})
	got := r.Respond(context.Background(), "s1", "maximum for q5")
	if got != "Operation 'max' not supported. Available operations: count, summary, check, mean" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestExistenceCheckFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"count|Q1|none"}}
	fake := &fakeStore{existenceErr: fmt.Errorf("connection refused")}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "count for Q1")
	if got != "Error validating question" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestCountNotFoundWithSuggestions(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"count|Q1|none"}}
	fake := &fakeStore{similar: []store.QuestionRef{{QuestionID: "Q10"}}}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "count for Q1")
	expected := "Question Q1 not found. Did you mean one of these?\n- Q10"
	if got != expected {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestGridCountWithColumnFilter(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"count|S5S6_loop[1]|none"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"S5S6_loop": store.KindGrid},
		grid: []store.GridRow{
			{ResponseValue: "1", Counts: map[string]int{"S5S6_loop[1]": 3}},
		},
	}
	r := newResolver(t, provider, fake)
	got := r.Respond(context.Background(), "s1", "count for S5S6_loop[1]")
	if fake.gridBase != "S5S6_loop" {
		t.Fatalf("expected base identifier for grid aggregation, got %q", fake.gridBase)
	}
	if len(fake.gridNumbers) != 1 || fake.gridNumbers[0] != "1" {
		t.Fatalf("expected column filter [1], got %v", fake.gridNumbers)
	}
	if !strings.HasPrefix(got, "\tS5S6_loop[1]") {
		t.Fatalf("unexpected grid table: %q", got)
	}
}

func TestSummaryShortcutUsesBase(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"summary|S5S6_loop[2]|none"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"S5S6_loop": store.KindGrid},
		grid: []store.GridRow{
			{ResponseValue: "1", Counts: map[string]int{"S5S6_loop[1]": 3, "S5S6_loop[2]": 4}},
		},
	}
	r := newResolver(t, provider, fake)
	r.Respond(context.Background(), "s1", "show me grid summary of S5S6_loop[2]")
	if len(fake.gridNumbers) != 0 {
		t.Fatalf("summary must aggregate the whole grid, got filter %v", fake.gridNumbers)
	}
}

func TestDeferredMeanFlow(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"mean|Q3|none", "age"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"Q3": store.KindSingleAnswer},
		baseN:  100,
		values: []string{"1", "2"},
		counts: map[string]int{"1": 30, "2": 70},
	}
	r := newResolver(t, provider, fake)

	first := r.Respond(context.Background(), "s1", "mean for Q3")
	if !strings.Contains(first, "code to value mapping") {
		t.Fatalf("expected clarification prompt, got %q", first)
	}

	second := r.Respond(context.Background(), "s1", "Code 1 --> 23, Code 2 --> 28")
	// 30*23 + 70*28 = 2650 over base 100
	if !strings.Contains(second, "Mean\t-\t-\t26.50") {
		t.Fatalf("unexpected weighted mean output: %q", second)
	}
	if !strings.HasPrefix(second, "Base\t100") {
		t.Fatalf("expected base row first, got %q", second)
	}

	if r.hasPending("s1") {
		t.Fatalf("pending state must be cleared after the mean is computed")
	}
}

func TestMeanFollowUpThatDoesNotParseKeepsPending(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"mean|Q3|none", "factormap-classify", "none|none|none"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"Q3": store.KindSingleAnswer},
		baseN:  10,
		values: []string{"1"},
		counts: map[string]int{"1": 10},
	}
	r := newResolver(t, provider, fake)
	r.Respond(context.Background(), "s1", "mean for Q3")

	got := r.Respond(context.Background(), "s1", "factor stuff with no pairs")
	if !strings.Contains(got, "couldn't read that code to value mapping") {
		t.Fatalf("expected mapping re-prompt, got %q", got)
	}
	if !r.hasPending("s1") {
		t.Fatalf("pending state must survive an unparsable follow-up")
	}
}

func TestFreshIntentSupersedesPendingMean(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"mean|Q3|none", "count|Q3|none", "none|none|none"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"Q3": store.KindSingleAnswer},
		baseN:  100,
		values: []string{"1", "2"},
		counts: map[string]int{"1": 30, "2": 70},
	}
	r := newResolver(t, provider, fake)

	r.Respond(context.Background(), "s1", "mean for Q3")
	if !r.hasPending("s1") {
		t.Fatalf("expected pending state after the mean request")
	}

	r.Respond(context.Background(), "s1", "count for Q3")
	if r.hasPending("s1") {
		t.Fatalf("a fresh non-mean intent must clear the pending mean request")
	}

	got := r.Respond(context.Background(), "s1", "Code 1 --> 23, Code 2 --> 28")
	if got != "Please specify your operation and variable" {
		t.Fatalf("mapping turn without pending state must re-prompt, got %q", got)
	}
}

func TestPendingStateIsPerSession(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"mean|Q3|none", "none|none|none", "age"}}
	fake := &fakeStore{
		exists: true,
		kinds:  map[string]store.ColumnKind{"Q3": store.KindSingleAnswer},
		baseN:  100,
		values: []string{"1", "2"},
		counts: map[string]int{"1": 30, "2": 70},
	}
	r := newResolver(t, provider, fake)

	r.Respond(context.Background(), "alice", "mean for Q3")

	// Bob's mapping-shaped turn must not consume Alice's pending request.
	bob := r.Respond(context.Background(), "bob", "Code 1 --> 23, Code 2 --> 28")
	if bob != "Please specify your operation and variable" {
		t.Fatalf("unexpected response for session without pending state: %q", bob)
	}
	if !r.hasPending("alice") {
		t.Fatalf("alice's pending request must survive bob's turn")
	}

	alice := r.Respond(context.Background(), "alice", "Code 1 --> 23, Code 2 --> 28")
	if !strings.Contains(alice, "Mean\t-\t-\t26.50") {
		t.Fatalf("unexpected weighted mean output: %q", alice)
	}
}
