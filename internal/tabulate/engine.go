// File path: internal/tabulate/engine.go
package tabulate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jellydator/ttlcache/v3"

	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/store"
)

const kindCacheTTL = 5 * time.Minute

// Store is the slice of the data-access capability the engine needs.
type Store interface {
	LookupColumnKind(ctx context.Context, baseID string) (*store.ColumnInfo, error)
	CountSingleAnswer(ctx context.Context, id string, code *string) (int, error)
	CountMultiAnswer(ctx context.Context, id string, code *string) (int, error)
	GridCounts(ctx context.Context, baseID string, gridNumbers []string) ([]store.GridRow, error)
	DistinctResponseValues(ctx context.Context, id string, exact bool) ([]string, error)
}

// Engine produces canonical count tables for validated identifiers. All
// capability failures are folded into user-facing text at this boundary;
// the engine never propagates an error to its caller.
type Engine struct {
	store Store
	kinds *ttlcache.Cache[string, store.ColumnInfo]
}

func New(st Store) *Engine {
	kinds := ttlcache.New[string, store.ColumnInfo](
		ttlcache.WithTTL[string, store.ColumnInfo](kindCacheTTL),
	)
	go kinds.Start()
	return &Engine{store: st, kinds: kinds}
}

// Stop releases the column-kind cache janitor.
func (e *Engine) Stop() {
	if e != nil && e.kinds != nil {
		e.kinds.Stop()
	}
}

// CountsFor renders the count table for a question identifier,
// dispatching on the declared column kind of its bracket-stripped base.
func (e *Engine) CountsFor(ctx context.Context, questionID string) string {
	logger := common.Logger()
	questionID = strings.TrimSpace(questionID)
	baseID := questionID
	if idx := strings.Index(questionID, "["); idx >= 0 {
		baseID = questionID[:idx]
	}
	info, err := e.lookupKind(ctx, baseID)
	if err != nil {
		logger.Error("tabulate: kind lookup failed", "question", baseID, "error", err)
		return "Error fetching counts: " + err.Error()
	}
	if info == nil {
		return "Question not found"
	}
	logger.Debug("tabulate: dispatching", "question", questionID, "kind", info.Kind)
	switch info.Kind {
	case store.KindGrid:
		return e.gridCounts(ctx, questionID, baseID)
	case store.KindSingleAnswer:
		return e.singleAnswerCounts(ctx, questionID)
	case store.KindMultiAnswer:
		return e.multiAnswerCounts(ctx, questionID)
	default:
		return "Unsupported question type"
	}
}

func (e *Engine) lookupKind(ctx context.Context, baseID string) (*store.ColumnInfo, error) {
	if e.kinds != nil {
		if item := e.kinds.Get(baseID); item != nil {
			info := item.Value()
			return &info, nil
		}
	}
	info, err := e.store.LookupColumnKind(ctx, baseID)
	if err != nil || info == nil {
		return info, err
	}
	if e.kinds != nil {
		e.kinds.Set(baseID, *info, ttlcache.DefaultTTL)
	}
	return info, nil
}

// gridCounts aggregates one bracketed column when the identifier names
// one, otherwise every column variant under the base.
func (e *Engine) gridCounts(ctx context.Context, questionID, baseID string) string {
	var gridNumbers []string
	if open := strings.Index(questionID, "["); open >= 0 {
		if close := strings.Index(questionID, "]"); close > open {
			gridNumbers = []string{questionID[open+1 : close]}
		}
	}
	rows, err := e.store.GridCounts(ctx, baseID, gridNumbers)
	if err != nil {
		return "Error fetching counts: " + err.Error()
	}
	if len(rows) == 0 {
		return "No data found"
	}

	columnSet := make(map[string]struct{})
	for _, row := range rows {
		for col := range row.Counts {
			columnSet[col] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for col := range columnSet {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, "\t"+strings.Join(columns, "\t"))
	lines = append(lines, "")
	for _, row := range rows {
		cells := make([]string, 0, len(columns)+1)
		cells = append(cells, row.ResponseValue)
		for _, col := range columns {
			if count, ok := row.Counts[col]; ok {
				cells = append(cells, strconv.Itoa(count))
			} else {
				cells = append(cells, "0")
			}
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) singleAnswerCounts(ctx context.Context, questionID string) string {
	base, err := e.store.CountSingleAnswer(ctx, questionID, nil)
	if err != nil {
		return "Error fetching counts: " + err.Error()
	}
	values, err := e.store.DistinctResponseValues(ctx, questionID, false)
	if err != nil {
		return "Error fetching counts: " + err.Error()
	}
	codes := collectCodes(values)

	var b strings.Builder
	fmt.Fprintf(&b, "Base\t%d\n\n", base)
	total := 0
	for _, code := range codes {
		c := code
		count, err := e.store.CountSingleAnswer(ctx, questionID, &c)
		if err != nil {
			return "Error fetching counts: " + err.Error()
		}
		if count > 0 {
			fmt.Fprintf(&b, "%s\t%d\n", code, count)
			total += count
		}
	}
	fmt.Fprintf(&b, "\nTotal\t%d", total)
	return b.String()
}

func (e *Engine) multiAnswerCounts(ctx context.Context, questionID string) string {
	base, err := e.store.CountMultiAnswer(ctx, questionID, nil)
	if err != nil {
		return "Error fetching counts: " + err.Error()
	}
	values, err := e.store.DistinctResponseValues(ctx, questionID, true)
	if err != nil {
		return "Error fetching counts: " + err.Error()
	}
	codes := collectCodes(values)

	var b strings.Builder
	fmt.Fprintf(&b, "Base\t%d\n\n", base)
	total := 0
	for _, code := range codes {
		c := code
		count, err := e.store.CountMultiAnswer(ctx, questionID, &c)
		if err != nil {
			return "Error fetching counts: " + err.Error()
		}
		if count > 0 {
			fmt.Fprintf(&b, "%s\t%d\n", code, count)
			total += count
		}
	}
	// The multi-answer total label carries a trailing space before the
	// tab. Downstream consumers rely on the distinction.
	fmt.Fprintf(&b, "\nTotal \t%d", total)
	return b.String()
}

// collectCodes splits raw response values into individual codes. A raw
// value is either a scalar code or a bracketed list like "[1, 3]".
func collectCodes(values []string) []string {
	unique := make(map[string]struct{})
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inner := strings.ReplaceAll(trimmed[1:len(trimmed)-1], " ", "")
			for _, code := range strings.Split(inner, ",") {
				if code != "" {
					unique[code] = struct{}{}
				}
			}
			continue
		}
		unique[trimmed] = struct{}{}
	}
	codes := make([]string, 0, len(unique))
	for code := range unique {
		codes = append(codes, code)
	}
	sortCodes(codes)
	return codes
}

// sortCodes orders numeric codes ascending by integer value and places
// non-numeric codes after them in lexicographic order.
func sortCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		ni, iNum := codeNumber(codes[i])
		nj, jNum := codeNumber(codes[j])
		switch {
		case iNum && jNum:
			return ni < nj
		case iNum:
			return true
		case jNum:
			return false
		default:
			return codes[i] < codes[j]
		}
	})
}

func codeNumber(code string) (int, bool) {
	if code == "" {
		return 0, false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return 0, false
		}
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, false
	}
	return n, true
}
