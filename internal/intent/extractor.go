// File path: internal/intent/extractor.go
package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/llm"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 2
)

const extractionTemplate = `Analyze the user input and extract the requested operations, the question ID and an optional factor.

Operation types:
1. "check" - if asking about existence of a question
2. "count" - if asking for counts/frequency
3. "summary" - if asking for a grid summary
4. "mean" - if asking for a mean/average
5. "none" - if the operation is unclear or the input is gibberish

Question ID formats: S5, S5[1], S5S6_loop, Q1, resp_gender, race, etc.
A factor is a grouping or weighting variable such as age, gender or currency.

Return format: operations|question_id|factor
Operations are comma-separated. Use "none" for any absent field.

Examples:
"does s0 exist?" -> check|s0|none
"what is count for s5s6_loop" -> count|s5s6_loop|none
"show me grid summary of s5s6_loop" -> summary|s5s6_loop|none
"mean for q3" -> mean|q3|none
"count and mean for q3 by gender" -> count,mean|q3|gender
"hello how are you" -> none|none|none

Input: %s
Output: `

const factorTemplate = `The user supplied a table mapping response codes to values. Classify the kind of factor the values represent.

Answer with exactly one word from: age, gender, currency, numeric

Examples:
"Code 1 --> 23, Code 2 --> 28" -> age
"Code 1 --> male, Code 2 --> female" -> gender
"Code 1 --> 1500, Code 2 --> 2800" -> currency
"1 = 0.5, 2 = 1.5" -> numeric

Input: %s
Output: `

// Extractor turns free text into a structured Intent by delegating
// classification to the completion capability.
type Extractor struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider, timeout: defaultTimeout}
}

// Classify requests the pipe-delimited extraction for a user turn and
// returns the raw completion. Any failure collapses to the "none"
// sentinel so callers can treat it as a total extraction failure.
func (e *Extractor) Classify(ctx context.Context, text string) string {
	logger := common.Logger()
	raw, err := e.complete(ctx, fmt.Sprintf(extractionTemplate, text))
	if err != nil {
		logger.Warn("intent: extraction completion failed", "error", err)
		return "none|none|none"
	}
	logger.Debug("intent: model extraction", "raw", raw)
	return raw
}

// Extract is Classify followed by ParseResponse.
func (e *Extractor) Extract(ctx context.Context, text string) Intent {
	return ParseResponse(e.Classify(ctx, text))
}

// ClassifyFactor tags a factor-mapping turn with its factor kind.
func (e *Extractor) ClassifyFactor(ctx context.Context, text string) (FactorKind, bool) {
	logger := common.Logger()
	raw, err := e.complete(ctx, fmt.Sprintf(factorTemplate, text))
	if err != nil {
		logger.Warn("intent: factor classification failed", "error", err)
		return "", false
	}
	switch FactorKind(strings.ToLower(strings.TrimSpace(raw))) {
	case FactorAge:
		return FactorAge, true
	case FactorGender:
		return FactorGender, true
	case FactorCurrency:
		return FactorCurrency, true
	case FactorNumeric:
		return FactorNumeric, true
	}
	logger.Warn("intent: unrecognised factor kind", "raw", raw)
	return "", false
}

// complete issues one model call under a bounded timeout with a small
// bounded retry for transient failures.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	if e == nil || e.provider == nil {
		return "", fmt.Errorf("no completion provider configured")
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), cctx)
	return backoff.RetryWithData(func() (string, error) {
		return e.provider.Chat(cctx, []llm.Message{{Role: "user", Content: prompt}})
	}, policy)
}

// ParseResponse validates the strict operations|question_id|factor format.
// A malformed completion yields the zero Intent.
func ParseResponse(raw string) Intent {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "`")
	cleaned = strings.TrimPrefix(cleaned, "Output:")
	cleaned = strings.TrimSpace(cleaned)
	if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
		cleaned = strings.TrimSpace(cleaned[:idx])
	}
	fields := strings.Split(cleaned, "|")
	if len(fields) != 3 {
		return Intent{}
	}
	ops, unrecognized := parseOperations(fields[0])
	return Intent{
		Operations:   ops,
		Question:     noneToEmpty(fields[1]),
		Factor:       noneToEmpty(strings.ToLower(fields[2])),
		Unrecognized: unrecognized,
	}
}

func parseOperations(field string) ([]OperationKind, []string) {
	var ops []OperationKind
	var unrecognized []string
	seen := make(map[OperationKind]struct{})
	for _, part := range strings.Split(field, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		var op OperationKind
		switch token {
		case "", string(OpNone):
			continue
		case "check", "exist":
			op = OpCheck
		case "count":
			op = OpCount
		case "summary", "grid":
			op = OpSummary
		case "mean":
			op = OpMean
		default:
			unrecognized = append(unrecognized, token)
			continue
		}
		if _, dup := seen[op]; dup {
			continue
		}
		seen[op] = struct{}{}
		ops = append(ops, op)
	}
	return ops, unrecognized
}

func noneToEmpty(field string) string {
	trimmed := strings.TrimSpace(field)
	if strings.EqualFold(trimmed, "none") {
		return ""
	}
	return trimmed
}
