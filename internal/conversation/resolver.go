// File path: internal/conversation/resolver.go
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langgraphgo/graph"

	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/intent"
	"github.com/crosstabs/surveychat/internal/resolver"
	"github.com/crosstabs/surveychat/internal/tabulate"
)

const factorMarker = "factormap|"

const fallbackMessage = "I couldn't process that query. Please try again"

type sessionContextKey struct{}

// pendingMean remembers a mean request that arrived without a factor
// mapping, across exactly one turn boundary.
type pendingMean struct {
	operations []intent.OperationKind
	question   string
}

// Resolver orchestrates one user turn: extract intent, resolve the
// identifier, dispatch per operation and carry deferred mean state.
// Pending state is partitioned per session; sessions never share a slot.
type Resolver struct {
	extractor *intent.Extractor
	ident     *resolver.Resolver
	engine    *tabulate.Engine
	pipeline  *graph.Runnable

	mu      sync.Mutex
	pending map[string]pendingMean
}

func New(extractor *intent.Extractor, ident *resolver.Resolver, engine *tabulate.Engine) (*Resolver, error) {
	r := &Resolver{
		extractor: extractor,
		ident:     ident,
		engine:    engine,
		pending:   make(map[string]pendingMean),
	}
	g := graph.NewMessageGraph()
	g.AddNode("extract", r.extractNode)
	g.AddNode("dispatch", r.dispatchNode)
	g.AddEdge("extract", "dispatch")
	g.AddEdge("dispatch", graph.END)
	g.SetEntryPoint("extract")
	pipeline, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile conversation graph: %w", err)
	}
	r.pipeline = pipeline
	return r, nil
}

// Respond handles one inbound turn for a session and returns the
// rendered text answer. It never returns an error to the transport; all
// failures collapse to user-facing text.
func (r *Resolver) Respond(ctx context.Context, sessionID, input string) string {
	logger := common.Logger()
	ctx = context.WithValue(ctx, sessionContextKey{}, sessionID)
	state, err := r.pipeline.Invoke(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	})
	if err != nil {
		logger.Error("conversation: pipeline failed", "session", sessionID, "error", err)
		return fallbackMessage
	}
	if answer := lastAIText(state); answer != "" {
		return answer
	}
	return fallbackMessage
}

// extractNode classifies the turn. For a factor-mapping follow-up it
// emits a factormap marker instead of the general extraction, so the
// dispatch node knows to consume the pending mean request.
func (r *Resolver) extractNode(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
	input := firstHumanText(state)
	session := sessionFrom(ctx)
	if r.hasPending(session) && intent.LooksLikeFactorMapping(input) {
		kind, ok := r.extractor.ClassifyFactor(ctx, input)
		if !ok {
			kind = intent.FactorNumeric
		}
		return append(state, llms.TextParts(llms.ChatMessageTypeAI, factorMarker+string(kind))), nil
	}
	raw := r.extractor.Classify(ctx, input)
	return append(state, llms.TextParts(llms.ChatMessageTypeAI, raw)), nil
}

// dispatchNode parses the extraction emitted by the previous node and
// renders the final answer.
func (r *Resolver) dispatchNode(ctx context.Context, state []llms.MessageContent) ([]llms.MessageContent, error) {
	input := firstHumanText(state)
	marker := lastAIText(state)
	answer := r.dispatch(ctx, sessionFrom(ctx), input, marker)
	return append(state, llms.TextParts(llms.ChatMessageTypeAI, answer)), nil
}

func (r *Resolver) dispatch(ctx context.Context, session, input, marker string) string {
	logger := common.Logger()
	if strings.HasPrefix(marker, factorMarker) {
		return r.resolveFactorTurn(ctx, session, input)
	}

	parsed := intent.ParseResponse(marker)
	if len(parsed.Operations) == 0 && len(parsed.Unrecognized) > 0 && parsed.Question != "" {
		return fmt.Sprintf("Operation '%s' not supported. Available operations: count, summary, check, mean", parsed.Unrecognized[0])
	}
	if parsed.Empty() {
		if parsed.Factor != "" {
			if _, ok := r.peekPending(session); ok {
				return fmt.Sprintf("Please provide the code to value mapping for %s (e.g. Code 1 --> 23, Code 2 --> 28).", parsed.Factor)
			}
		}
		return "Please specify your operation and variable"
	}

	result, err := r.ident.Check(ctx, parsed.Question)
	if err != nil {
		logger.Error("conversation: existence check failed", "session", session, "question", parsed.Question, "error", err)
		return "Error validating question"
	}

	// A fresh intent supersedes any pending mean request; a mean op below
	// installs its own.
	if !parsed.Has(intent.OpMean) {
		r.clearPending(session)
	}

	var sections []string
	for _, op := range orderedOperations(parsed) {
		switch op {
		case intent.OpCheck:
			sections = append(sections, renderExistence(parsed.Question, result))
		case intent.OpSummary:
			// Grid and loop identifiers go straight to grid aggregation
			// on the base identifier, even before the existence gate.
			if strings.Contains(parsed.Question, "_loop") || strings.Contains(parsed.Question, "[") {
				base := parsed.Question
				if idx := strings.Index(base, "["); idx >= 0 {
					base = base[:idx]
				}
				sections = append(sections, r.engine.CountsFor(ctx, base))
				continue
			}
			if !result.Exists {
				sections = append(sections, renderNotFound(parsed.Question, result.Suggestions))
				continue
			}
			sections = append(sections, r.engine.CountsFor(ctx, parsed.Question))
		case intent.OpCount:
			if !result.Exists {
				sections = append(sections, renderNotFound(parsed.Question, result.Suggestions))
				continue
			}
			sections = append(sections, r.engine.CountsFor(ctx, parsed.Question))
		case intent.OpMean:
			if !result.Exists {
				sections = append(sections, renderNotFound(parsed.Question, result.Suggestions))
				continue
			}
			r.setPending(session, pendingMean{operations: parsed.Operations, question: parsed.Question})
			if parsed.Factor != "" {
				sections = append(sections, fmt.Sprintf(
					"To compute the mean for %s by %s, please provide the code to value mapping (e.g. Code 1 --> 23, Code 2 --> 28).",
					parsed.Question, parsed.Factor))
			} else {
				sections = append(sections, fmt.Sprintf(
					"To compute the mean for %s, please provide the code to value mapping (e.g. Code 1 --> 23, Code 2 --> 28).",
					parsed.Question))
			}
		}
	}
	if len(sections) == 0 {
		return fallbackMessage
	}
	return strings.Join(sections, "\n\n")
}

// resolveFactorTurn consumes a pending mean request with the mapping the
// user supplied. A follow-up that does not parse keeps the pending state
// and re-prompts.
func (r *Resolver) resolveFactorTurn(ctx context.Context, session, input string) string {
	pending, ok := r.peekPending(session)
	if !ok {
		return "Please specify your operation and variable"
	}
	mapping, ok := intent.ParseFactorMapping(input)
	if !ok {
		return "I couldn't read that code to value mapping. Use the form: Code 1 --> 23, Code 2 --> 28"
	}
	r.clearPending(session)
	counts := r.engine.CountsFor(ctx, pending.question)
	if !strings.Contains(counts, "\t") {
		// Terminal message rather than a table; surface it verbatim.
		return counts
	}
	return tabulate.WeightedMean(counts, mapping)
}

func renderExistence(question string, result resolver.Result) string {
	if result.Exists {
		return fmt.Sprintf("Yes, question %s exists in the database.", question)
	}
	if len(result.Suggestions) > 0 {
		lines := make([]string, 0, len(result.Suggestions))
		for _, s := range result.Suggestions {
			lines = append(lines, "- "+s)
		}
		return fmt.Sprintf("No, question %s does not exist, but found these similar questions:\n%s",
			question, strings.Join(lines, "\n"))
	}
	return fmt.Sprintf("No, question %s does not exist in database", question)
}

func renderNotFound(question string, suggestions []string) string {
	if len(suggestions) > 0 {
		lines := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			lines = append(lines, "- "+s)
		}
		return fmt.Sprintf("Question %s not found. Did you mean one of these?\n%s",
			question, strings.Join(lines, "\n"))
	}
	return fmt.Sprintf("Question %s not found in database", question)
}

// orderedOperations yields the requested operations in a fixed
// check/count/summary/mean dispatch order.
func orderedOperations(parsed intent.Intent) []intent.OperationKind {
	order := []intent.OperationKind{intent.OpCheck, intent.OpCount, intent.OpSummary, intent.OpMean}
	var out []intent.OperationKind
	for _, op := range order {
		if parsed.Has(op) {
			out = append(out, op)
		}
	}
	return out
}

func (r *Resolver) hasPending(session string) bool {
	_, ok := r.peekPending(session)
	return ok
}

func (r *Resolver) peekPending(session string) (pendingMean, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, ok := r.pending[session]
	return pending, ok
}

func (r *Resolver) setPending(session string, pending pendingMean) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[session] = pending
}

func (r *Resolver) clearPending(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, session)
}

func sessionFrom(ctx context.Context) string {
	if session, ok := ctx.Value(sessionContextKey{}).(string); ok {
		return session
	}
	return ""
}

func firstHumanText(state []llms.MessageContent) string {
	for _, msg := range state {
		if msg.Role == llms.ChatMessageTypeHuman {
			return textOf(msg)
		}
	}
	return ""
}

func lastAIText(state []llms.MessageContent) string {
	for i := len(state) - 1; i >= 0; i-- {
		if state[i].Role == llms.ChatMessageTypeAI {
			return textOf(state[i])
		}
	}
	return ""
}

func textOf(msg llms.MessageContent) string {
	var parts []string
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
