// File path: internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/store"
)

// Store is the slice of the data-access capability the resolver needs.
type Store interface {
	CheckQuestionExists(ctx context.Context, id string) (store.Existence, error)
	SimilarQuestions(ctx context.Context, needle string) ([]store.QuestionRef, error)
}

// Result is the outcome of resolving a raw question identifier.
type Result struct {
	Exists      bool
	CanonicalID string
	Suggestions []string
}

type Resolver struct {
	store Store
}

func New(st Store) *Resolver {
	return &Resolver{store: st}
}

// Check resolves a raw identifier against the schema, returning the
// existence flag and expanded suggestions. The identifier is passed to
// the existence check as given while the suggestion search folds to
// uppercase; the asymmetry is deliberate and matches the upstream
// contract.
func (r *Resolver) Check(ctx context.Context, rawID string) (Result, error) {
	if r == nil || r.store == nil {
		return Result{}, fmt.Errorf("resolver not initialised")
	}
	trimmed := strings.TrimSpace(rawID)
	if trimmed == "" {
		return Result{}, nil
	}
	existence, err := r.store.CheckQuestionExists(ctx, trimmed)
	if err != nil {
		return Result{}, err
	}
	result := Result{Exists: existence.Exists, Suggestions: expandSuggestions(existence.Similar)}
	if existence.Exists {
		result.CanonicalID = trimmed
	}
	return result, nil
}

// Resolve is Check with the never-raises contract: data-access failures
// degrade to a no-match result with no suggestions.
func (r *Resolver) Resolve(ctx context.Context, rawID string) Result {
	result, err := r.Check(ctx, rawID)
	if err != nil {
		common.Logger().Error("resolver: existence check failed", "question", rawID, "error", err)
		return Result{}
	}
	return result
}

// Suggestions searches the schema for entries containing the identifier
// as a substring and expands grid, loop and sub-question variants.
func (r *Resolver) Suggestions(ctx context.Context, rawID string) []string {
	logger := common.Logger()
	if r == nil || r.store == nil {
		return nil
	}
	folded := strings.ToUpper(strings.TrimSpace(rawID))
	refs, err := r.store.SimilarQuestions(ctx, folded)
	if err != nil {
		logger.Error("resolver: suggestion search failed", "question", folded, "error", err)
		return nil
	}
	return expandSuggestions(refs)
}

// Validate implements the validate-only exchange: it folds the identifier
// before checking and renders the outcome as a user-facing message.
func (r *Resolver) Validate(ctx context.Context, rawID string) (bool, string, []string) {
	logger := common.Logger()
	folded := strings.ToUpper(strings.TrimSpace(rawID))
	existence, err := r.store.CheckQuestionExists(ctx, folded)
	if err != nil {
		logger.Error("resolver: validation failed", "question", folded, "error", err)
		return false, "Error validating question", nil
	}
	if existence.Exists {
		return true, "", nil
	}
	suggestions := expandSuggestions(existence.Similar)
	if len(suggestions) > 0 {
		lines := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			lines = append(lines, "- "+s)
		}
		msg := fmt.Sprintf("Question %s not found. Did you mean one of these?\n%s", folded, strings.Join(lines, "\n"))
		return false, msg, suggestions
	}
	return false, fmt.Sprintf("Couldnt find similar. Question %s not found in database", folded), nil
}

func expandSuggestions(refs []store.QuestionRef) []string {
	if len(refs) == 0 {
		return nil
	}
	unique := make(map[string]struct{})
	for _, ref := range refs {
		qid := strings.TrimSpace(ref.QuestionID)
		if qid == "" {
			continue
		}
		unique[qid] = struct{}{}
		if sub := strings.TrimSpace(ref.SubQuestion); sub != "" {
			unique[fmt.Sprintf("%s (sub: %s)", qid, sub)] = struct{}{}
		}
		if idx := strings.Index(qid, "["); idx > 0 {
			unique[qid[:idx]+" (grid summary)"] = struct{}{}
		}
		if strings.Contains(strings.ToLower(qid), "_loop") {
			base := qid
			if idx := strings.Index(qid, "_"); idx > 0 {
				base = qid[:idx]
			}
			unique[base+" (base)"] = struct{}{}
		}
	}
	out := make([]string, 0, len(unique))
	for s := range unique {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
